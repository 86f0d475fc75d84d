package country_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/country"
)

func writeCountries(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "countries.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadList(t *testing.T) {
	t.Parallel()

	path := writeCountries(t, `{"countries": [
		{"name": "Uganda", "iso3": "UGA"},
		{"name": "Kenya", "iso3": "KEN"}
	]}`)

	countries, err := country.LoadList(path)
	require.NoError(t, err)

	require.Len(t, countries, 2)
	assert.Equal(t, "Uganda", countries[0].Name)
	assert.Equal(t, "KEN", countries[1].ISO3)
}

func TestLoadListInvalid(t *testing.T) {
	t.Parallel()

	scenarios := []struct {
		name    string
		content string
	}{
		{name: "empty list", content: `{"countries": []}`},
		{name: "missing name", content: `{"countries": [{"iso3": "UGA"}]}`},
		{name: "bad iso3 length", content: `{"countries": [{"name": "Uganda", "iso3": "UG"}]}`},
		{name: "not json", content: `countries: []`},
	}

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			t.Parallel()

			_, err := country.LoadList(writeCountries(t, sc.content))
			require.Error(t, err)
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	countries := []country.Country{
		{Name: "Uganda", ISO3: "UGA"},
		{Name: "Kenya", ISO3: "KEN"},
		{Name: "Ghana", ISO3: "GHA"},
	}

	assert.Len(t, country.Filter(countries, nil), 3)

	kept := country.Filter(countries, []string{"ken", "GHA"})
	require.Len(t, kept, 2)
	assert.Equal(t, "KEN", kept[0].ISO3)
	assert.Equal(t, "GHA", kept[1].ISO3)

	assert.Empty(t, country.Filter(countries, []string{"ZZZ"}))
}

func TestDisplayList(t *testing.T) {
	t.Parallel()

	out := country.DisplayList([]country.Country{
		{Name: "Uganda", ISO3: "UGA"},
		{Name: "Kenya", ISO3: "KEN"},
	})

	assert.Equal(t, "   - Uganda (UGA)\n   - Kenya (KEN)", out)
}
