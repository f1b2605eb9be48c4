package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/vitalvas/switchboard/muxhandlers"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override configuration
// values.
const EnvPrefix = "SWITCHBOARD_"

// Config is the kernel configuration.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `yaml:"addr"`

	// Debug adds error details to rendered error responses.
	Debug bool `yaml:"debug"`

	// LoginURL is where unauthenticated HTML requests are redirected.
	LoginURL string `yaml:"login_url"`

	Middleware  MiddlewareConfig               `yaml:"middleware"`
	CORS        *muxhandlers.CORSConfig        `yaml:"cors"`
	BodyParsing *muxhandlers.BodyParsingConfig `yaml:"body_parsing"`
}

// MiddlewareConfig describes the middleware wiring synced to the router.
type MiddlewareConfig struct {
	// Global lists registered middleware ids run for every request, in
	// order, before routing.
	Global []string `yaml:"global"`

	Aliases  map[string]string   `yaml:"aliases"`
	Groups   map[string][]string `yaml:"groups"`
	Priority []string            `yaml:"priority"`
}

// DefaultConfig returns the configuration used for values a config file
// leaves unset.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8080",
		LoginURL: "/login",
		Middleware: MiddlewareConfig{
			Groups: map[string][]string{
				"web": {},
				"api": {},
			},
		},
	}
}

// LoadConfig reads a YAML config file, expanding ${VAR} references from the
// environment, and fills unset values from DefaultConfig. The given dotenv
// files are loaded first without overriding variables that are already
// set; missing dotenv files are ignored. SWITCHBOARD_* variables override
// the result. An empty path skips the config file.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("kernel: load %s: %w", f, err)
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("kernel: read config: %w", err)
		}
		if err := ParseConfig([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("kernel: merge defaults: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseConfig decodes YAML config data into cfg. Unknown keys are rejected.
func ParseConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("kernel: parse config: %w", err)
	}
	return nil
}

// applyEnv applies SWITCHBOARD_* overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "ADDR"); ok {
		c.Addr = v
	}

	if v, ok := lookup(EnvPrefix + "DEBUG"); ok {
		debug, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("kernel: %sDEBUG: %w", EnvPrefix, err)
		}
		c.Debug = debug
	}

	if v, ok := lookup(EnvPrefix + "LOGIN_URL"); ok {
		c.LoginURL = v
	}

	if v, ok := lookup(EnvPrefix + "BODY_MAX_BYTES"); ok {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return fmt.Errorf("kernel: %sBODY_MAX_BYTES: %w", EnvPrefix, err)
		}
		if c.BodyParsing == nil {
			c.BodyParsing = &muxhandlers.BodyParsingConfig{}
		}
		c.BodyParsing.MaxBytes = n
	}

	if v, ok := lookup(EnvPrefix + "CORS_ALLOWED_ORIGINS"); ok {
		if c.CORS == nil {
			c.CORS = &muxhandlers.CORSConfig{}
		}
		c.CORS.AllowedOrigins = splitList(v)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
