package config

import (
	"fmt"
	"time"
)

const (
	DefaultEngine             = "whisperx"
	DefaultEngineURL          = "http://localhost:9000/transcribe"
	DefaultListenAddr         = "localhost:8383"
	DefaultKeyMode            = "ptt"
	DefaultHotkey             = "ctrl+shift+space"
	DefaultOutput             = "type"
	DefaultLongPress          = 350 * time.Millisecond
	DefaultEnergyThreshold    = 300
	DefaultPauseThreshold     = 800 * time.Millisecond
	DefaultPhraseMin          = 300 * time.Millisecond
	DefaultPruneInterval      = 10 * time.Second
	DefaultLivenessTimeout    = 10 * time.Second
	DefaultDeactivateInterval = time.Second
	DefaultSessionBuffer      = 64
	DefaultLogLevel           = "info"
)

// Config is the full runtime configuration. Zero durations and counts are
// replaced with defaults by Validate.
type Config struct {
	Engine    string `yaml:"engine"`
	EngineURL string `yaml:"engine_url"`
	EngineKey string `yaml:"engine_key"`
	Insecure  bool   `yaml:"insecure"`
	Language  string `yaml:"language"`

	// APIKey is the shared secret remote clients send in the Authorization
	// header. The remote server only runs when it is set.
	APIKey     string `yaml:"api_key"`
	ListenAddr string `yaml:"listen_addr"`
	TLSCert    string `yaml:"tls_cert"`
	TLSKey     string `yaml:"tls_key"`

	KeyMode   string        `yaml:"key_mode"`
	Hotkey    string        `yaml:"hotkey"`
	LongPress time.Duration `yaml:"long_press"`
	Output    string        `yaml:"output"`

	Device          string        `yaml:"device"`
	EnergyThreshold float64       `yaml:"energy_threshold"`
	PauseThreshold  time.Duration `yaml:"pause_threshold"`
	PhraseMin       time.Duration `yaml:"phrase_min"`

	PruneInterval      time.Duration `yaml:"prune_interval"`
	LivenessTimeout    time.Duration `yaml:"liveness_timeout"`
	DeactivateInterval time.Duration `yaml:"deactivate_interval"`
	SessionBuffer      int           `yaml:"session_buffer"`

	LogLevel string `yaml:"log_level"`
	Cues     bool   `yaml:"cues"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Engine:             DefaultEngine,
		EngineURL:          DefaultEngineURL,
		ListenAddr:         DefaultListenAddr,
		KeyMode:            DefaultKeyMode,
		Hotkey:             DefaultHotkey,
		LongPress:          DefaultLongPress,
		Output:             DefaultOutput,
		EnergyThreshold:    DefaultEnergyThreshold,
		PauseThreshold:     DefaultPauseThreshold,
		PhraseMin:          DefaultPhraseMin,
		PruneInterval:      DefaultPruneInterval,
		LivenessTimeout:    DefaultLivenessTimeout,
		DeactivateInterval: DefaultDeactivateInterval,
		SessionBuffer:      DefaultSessionBuffer,
		LogLevel:           DefaultLogLevel,
		Cues:               true,
	}
}

// Validate applies defaults, checks enumerations, and rejects out-of-range
// values.
func (c *Config) Validate() error {
	switch c.Engine {
	case "":
		c.Engine = DefaultEngine
	case "whisperx", "groq", "openai", "fake":
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	switch c.KeyMode {
	case "":
		c.KeyMode = DefaultKeyMode
	case "ptt", "toggle", "hybrid":
	default:
		return fmt.Errorf("config: unknown key_mode %q", c.KeyMode)
	}
	switch c.Output {
	case "":
		c.Output = DefaultOutput
	case "type", "paste":
	default:
		return fmt.Errorf("config: unknown output %q", c.Output)
	}
	switch c.LogLevel {
	case "":
		c.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	if c.Engine == "whisperx" && c.EngineURL == "" {
		c.EngineURL = DefaultEngineURL
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Hotkey == "" {
		c.Hotkey = DefaultHotkey
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("config: tls_cert and tls_key must be set together")
	}

	defaultDuration(&c.LongPress, DefaultLongPress)
	defaultDuration(&c.PauseThreshold, DefaultPauseThreshold)
	defaultDuration(&c.PhraseMin, DefaultPhraseMin)
	defaultDuration(&c.PruneInterval, DefaultPruneInterval)
	defaultDuration(&c.LivenessTimeout, DefaultLivenessTimeout)
	defaultDuration(&c.DeactivateInterval, DefaultDeactivateInterval)
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.SessionBuffer == 0 {
		c.SessionBuffer = DefaultSessionBuffer
	}

	for name, d := range map[string]time.Duration{
		"long_press":          c.LongPress,
		"pause_threshold":     c.PauseThreshold,
		"phrase_min":          c.PhraseMin,
		"prune_interval":      c.PruneInterval,
		"liveness_timeout":    c.LivenessTimeout,
		"deactivate_interval": c.DeactivateInterval,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("config: energy_threshold must be >= 0, got %v", c.EnergyThreshold)
	}
	if c.SessionBuffer < 0 {
		return fmt.Errorf("config: session_buffer must be >= 0 (0 selects %d), got %d", DefaultSessionBuffer, c.SessionBuffer)
	}
	return nil
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// RemoteEnabled reports whether the HTTP boundary should start.
func (c Config) RemoteEnabled() bool { return c.APIKey != "" }
