package scriptrun

import (
	"github.com/jward/scriptrun/internal/discovery"
	"github.com/jward/scriptrun/internal/engine"
)

// DefaultNameOfProjectProperty is the binding name used for the project when
// PassProjectAsProperty is set and NameOfProjectProperty is empty.
const DefaultNameOfProjectProperty = "project"

// InlineSource labels the inline script in errors, logs and outcomes.
const InlineSource = "<inline>"

// Config is the per-execution configuration.
type Config struct {
	// Includes and Excludes filter files under each script source root.
	// Empty Includes means every file.
	Includes []string
	Excludes []string

	// Language selects the inline script's engine by language name. When
	// empty, Extension and then MimeType are tried.
	Language  string
	Extension string
	MimeType  string

	// Script is evaluated once, after every discovered file.
	Script string

	PassProjectAsProperty bool
	// NameOfProjectProperty defaults to DefaultNameOfProjectProperty.
	NameOfProjectProperty string
}

// projectPropertyName returns the binding name for the project.
func (c Config) projectPropertyName() string {
	if c.NameOfProjectProperty == "" {
		return DefaultNameOfProjectProperty
	}
	return c.NameOfProjectProperty
}

// InlineSelector returns the key and kind used to resolve the inline
// script's engine. ok is false when no selector is configured.
func (c Config) InlineSelector() (key string, kind engine.Kind, ok bool) {
	switch {
	case c.Language != "":
		return c.Language, engine.KindName, true
	case c.Extension != "":
		return c.Extension, engine.KindExtension, true
	case c.MimeType != "":
		return c.MimeType, engine.KindMimeType, true
	default:
		return "", 0, false
	}
}

// Filter returns the discovery filter for the configured patterns.
func (c Config) Filter() discovery.Filter {
	return discovery.Filter{Includes: c.Includes, Excludes: c.Excludes}
}

// Validate reports configuration errors that can be detected before any
// script runs. Runner.Execute does not call it: it reports the same problems
// at the point in the run where they apply.
func (c Config) Validate() error {
	if _, err := c.Filter().Compile(); err != nil {
		return &ConfigurationError{Option: "includes/excludes", Reason: "bad glob pattern", Err: err}
	}
	if c.Script != "" {
		if _, _, ok := c.InlineSelector(); !ok {
			return errLanguageRequired()
		}
	}
	return nil
}

func errLanguageRequired() *ConfigurationError {
	return &ConfigurationError{
		Option: "language",
		Reason: "one of language, extension or mimeType must be specified for an inline script",
	}
}
