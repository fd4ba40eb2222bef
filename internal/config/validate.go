package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.UploadURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/coco/config.toml"
		}
		return fmt.Errorf("backend.upload_url is required, edit %s (create with 'cocod config init')", defaultPath)
	}
	for name, value := range map[string]string{
		"backend.upload_url":           c.Backend.UploadURL,
		"backend.health_url":           c.Backend.HealthURL,
		"backend.session_complete_url": c.Backend.SessionCompleteURL,
	} {
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s is not a valid URL: %q", name, value)
		}
	}
	if c.Backend.HealthURL == "" {
		return errors.New("backend.health_url is required for reachability probing")
	}
	if strings.TrimSpace(c.Backend.APIKey) == "" {
		return errors.New("backend.api_key is required. Set COCO_API_KEY or add it to .env")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.MinProbeIntervalSeconds > c.Network.MaxProbeIntervalSeconds {
		return fmt.Errorf("network.min_probe_interval_seconds (%d) exceeds max (%d)",
			c.Network.MinProbeIntervalSeconds, c.Network.MaxProbeIntervalSeconds)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.RecordSeconds > 300 {
		return fmt.Errorf("audio.record_seconds (%d) exceeds the 300s chunk ceiling", c.Audio.RecordSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
