package api

import (
	"fmt"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// Job names issued by the remote scheduler follow a fixed format:
// botech-sim-{environment}-{ULID}, ULID being 26 Crockford Base32 chars.
const jobNamePrefix = "botech-sim"

var anyEnvJobName = regexp.MustCompile(
	`^botech-sim-.+-([0-9ABCDEFGHJKMNPQRSTVWXYZ]{26})$`)

// ExtractULID pulls the ULID out of a job name. When environment is
// non-empty the job name must carry exactly that environment.
func ExtractULID(jobName, environment string) (string, error) {
	if jobName == "" {
		return "", contract.NewError(contract.CodeInvalidInput, "empty job name")
	}

	re := anyEnvJobName
	if environment != "" {
		re = regexp.MustCompile(
			`^` + jobNamePrefix + `-` + regexp.QuoteMeta(environment) +
				`-([0-9ABCDEFGHJKMNPQRSTVWXYZ]{26})$`)
	}

	m := re.FindStringSubmatch(jobName)
	if m == nil {
		return "", contract.NewError(contract.CodeInvalidInput,
			fmt.Sprintf("no ULID found in job name %q", jobName))
	}

	return m[1], nil
}

// ValidULID reports whether s is a well-formed 26-character Crockford
// Base32 ULID.
func ValidULID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ULIDTimestamp decodes the embedded millisecond timestamp of a ULID.
func ULIDTimestamp(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ULID %q: %w", s, err)
	}
	return ulid.Time(id.Time()), nil
}
