package config

import (
	"os"
)

// EnvironmentExpander expands ${VAR} and $VAR placeholders in raw configuration
// bytes before they are decoded, so secrets such as the remote password can
// stay out of the embedded YAML.
type EnvironmentExpander interface {
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment.
// Unset variables expand to the empty string.
type OsEnvironmentExpander struct {
	lookup func(string) (string, bool)
}

// NewOsEnvironmentExpander creates an expander backed by os.LookupEnv.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{lookup: os.LookupEnv}
}

// NewMapEnvironmentExpander creates an expander backed by a fixed map.
func NewMapEnvironmentExpander(vars map[string]string) *OsEnvironmentExpander {
	return &OsEnvironmentExpander{lookup: func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}}
}

// Expand implements EnvironmentExpander. A literal "$$" is kept as "$".
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	expanded := os.Expand(string(input), func(key string) string {
		if key == "$" {
			return "$"
		}
		v, _ := e.lookup(key)
		return v
	})
	return []byte(expanded), nil
}
