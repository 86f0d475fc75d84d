// Package country loads and validates the country list that drives
// multi-country validation. ISO3 codes are the join key used for file
// naming, database rows and API parameters.
package country

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Country struct {
	Name string `json:"name" validate:"required"`
	ISO3 string `json:"iso3" validate:"required,len=3"`
}

type listFile struct {
	Countries []Country `json:"countries" validate:"required,min=1,dive"`
}

// LoadList reads a countries file of the form {"countries": [{name, iso3}...]}.
func LoadList(path string) ([]Country, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries file %q: %w", path, err)
	}

	var file listFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse countries file %q: %w", path, err)
	}

	validate := validator.New()
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid countries file %q: %w", path, err)
	}

	return file.Countries, nil
}

// Filter keeps the countries whose ISO3 code appears in iso3s. An empty
// filter keeps everything.
func Filter(countries []Country, iso3s []string) []Country {
	if len(iso3s) == 0 {
		return countries
	}

	wanted := make(map[string]bool, len(iso3s))
	for _, code := range iso3s {
		wanted[strings.ToUpper(code)] = true
	}

	kept := make([]Country, 0, len(countries))
	for _, c := range countries {
		if wanted[strings.ToUpper(c.ISO3)] {
			kept = append(kept, c)
		}
	}

	return kept
}

// DisplayList formats countries for console output, one bullet per line.
func DisplayList(countries []Country) string {
	var b strings.Builder
	for _, c := range countries {
		fmt.Fprintf(&b, "   - %s (%s)\n", c.Name, c.ISO3)
	}
	return strings.TrimRight(b.String(), "\n")
}
