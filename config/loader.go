package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from defaults, an optional YAML file and the
// environment, in that order. Tests override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load reads path (if non-empty and present) and validates the result. A
// missing file is not an error; a malformed one is.
func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Default()

	if path != "" {
		data, err := l.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	overrideString(l.Lookup, "HARK_ENGINE", &cfg.Engine)
	overrideString(l.Lookup, "HARK_ENGINE_URL", &cfg.EngineURL)
	overrideString(l.Lookup, "HARK_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "HARK_API_KEY", &cfg.APIKey)
	overrideString(l.Lookup, "HARK_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "HARK_TLS_CERT", &cfg.TLSCert)
	overrideString(l.Lookup, "HARK_TLS_KEY", &cfg.TLSKey)
	overrideString(l.Lookup, "HARK_KEY_MODE", &cfg.KeyMode)
	overrideString(l.Lookup, "HARK_HOTKEY", &cfg.Hotkey)
	overrideString(l.Lookup, "HARK_OUTPUT", &cfg.Output)
	overrideString(l.Lookup, "HARK_DEVICE", &cfg.Device)
	overrideString(l.Lookup, "HARK_LOG_LEVEL", &cfg.LogLevel)
	if err := overrideDuration(l.Lookup, "HARK_LIVENESS_TIMEOUT", &cfg.LivenessTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "HARK_PRUNE_INTERVAL", &cfg.PruneInterval); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "HARK_CUES", &cfg.Cues); err != nil {
		return Config{}, err
	}

	if cfg.EngineKey == "" {
		switch cfg.Engine {
		case "groq":
			overrideString(l.Lookup, "GROQ_API_KEY", &cfg.EngineKey)
		case "openai":
			overrideString(l.Lookup, "OPENAI_API_KEY", &cfg.EngineKey)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = d
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = b
	return nil
}
