package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"

	"github.com/satriahrh/irp-helper/domain"
)

// Config aggregates every setting of the service. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Debug  bool         `env:"DEBUG"`
	Gemini GeminiConfig `envPrefix:"GEMINI_"`
	Server ServerConfig `envPrefix:"SERVER_"`
	Chat   ChatConfig   `envPrefix:"CHAT_"`
	Voice  VoiceConfig  `envPrefix:"VOICE_"`
}

type GeminiConfig struct {
	APIKey            string        `env:"API_KEY" envDefault:"YOUR_GEMINI_API_KEY"`
	Model             string        `env:"MODEL" envDefault:"gemini-2.0-flash-001"`
	BaseURL           string        `env:"BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Backend           string        `env:"BACKEND" envDefault:"rest"`
	Timeout           time.Duration `env:"TIMEOUT" envDefault:"0s"`
	MaxRetries        uint64        `env:"MAX_RETRIES" envDefault:"0"`
	RetryInterval     time.Duration `env:"RETRY_INTERVAL" envDefault:"500ms"`
	SystemInstruction string        `env:"SYSTEM_INSTRUCTION"`
}

type ServerConfig struct {
	Addr         string        `env:"ADDR" envDefault:":8080"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	RateLimit    float64       `env:"RATE_LIMIT" envDefault:"20"`
	BodyLimit    string        `env:"BODY_LIMIT" envDefault:"10MB"`
	AllowOrigins []string      `env:"ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
}

type ChatConfig struct {
	TypewriterSpeed       time.Duration `env:"TYPEWRITER_SPEED" envDefault:"30ms"`
	AllowOverlappingSends bool          `env:"ALLOW_OVERLAPPING_SENDS"`
}

type VoiceConfig struct {
	TTSEnabled      bool   `env:"TTS_ENABLED"`
	SpeechEnabled   bool   `env:"SPEECH_ENABLED"`
	LanguageCode    string `env:"LANGUAGE_CODE" envDefault:"en-US"`
	SampleRateHertz int32  `env:"SAMPLE_RATE_HERTZ" envDefault:"16000"`
}

const (
	BackendREST  = "rest"
	BackendGenai = "genai"
)

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = gotenv.Load()
	return parse(env.Options{})
}

// Parse builds a Config from environ alone, ignoring the process environment.
func Parse(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Gemini.Backend = strings.ToLower(strings.TrimSpace(c.Gemini.Backend))
	switch c.Gemini.Backend {
	case BackendREST, BackendGenai:
	default:
		return fmt.Errorf("invalid GEMINI_BACKEND %q: want %q or %q", c.Gemini.Backend, BackendREST, BackendGenai)
	}
	if c.Chat.TypewriterSpeed <= 0 {
		return fmt.Errorf("invalid CHAT_TYPEWRITER_SPEED %s: must be positive", c.Chat.TypewriterSpeed)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	return nil
}

// CredentialConfigured reports whether a real Gemini key was supplied.
func (c *Config) CredentialConfigured() bool {
	return domain.CredentialConfigured(c.Gemini.APIKey)
}
