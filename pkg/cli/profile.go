package cli

import (
	"os"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// loadProfile reads a profile YAML file and returns it formatted for the answer prompt
func loadProfile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read profile", goerr.V("path", path))
	}

	var profile model.Profile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return "", goerr.Wrap(err, "failed to parse profile", goerr.V("path", path))
	}

	formatted := profile.Format()
	if formatted == "" {
		return "", goerr.Wrap(model.ErrInvalidInput, "profile has no values", goerr.V("path", path))
	}
	return formatted, nil
}
