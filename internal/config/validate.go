package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSplit() error {
	if c.Split.MaxWorkers <= 0 {
		return errors.New("split.max_workers must be positive")
	}
	for key, ext := range map[string]string{
		"split.input_extension":  c.Split.InputExtension,
		"split.output_extension": c.Split.OutputExtension,
	} {
		if len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("%s %q is not a file extension", key, ext)
		}
	}
	if c.Split.InputExtension == c.Split.OutputExtension {
		return errors.New("split.output_extension must differ from split.input_extension")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return errors.New("journal.path must be set when journal.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
