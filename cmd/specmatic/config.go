package main

import (
	"os"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
	"github.com/itchyny/go-yaml"

	"github.com/EmmanuelMendoza/specmatic"
)

// defaultConfigFile is read from the working directory when --config is
// not given. Its absence is not an error.
const defaultConfigFile = "specmatic.yaml"

// config mirrors specmatic.yaml. Flags override it.
type config struct {
	Contracts []string `yaml:"contracts" validate:"dive,required"`
	LogLevel  string   `yaml:"logLevel" validate:"omitempty,oneof=error warn info debug"`
	MaxDepth  int      `yaml:"maxDepth" validate:"gte=0"`

	Stub stubConfig `yaml:"stub"`
	Test testConfig `yaml:"test"`
}

type stubConfig struct {
	Host    string `yaml:"host" validate:"required"`
	Port    int    `yaml:"port" validate:"gte=1,lte=65535"`
	DataDir string `yaml:"dataDir"`
	Strict  bool   `yaml:"strict"`
}

type testConfig struct {
	BaseURL        string `yaml:"baseURL" validate:"omitempty,url"`
	Parallelism    int    `yaml:"parallelism" validate:"gte=0,lte=256"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" validate:"gte=0"`
	Generative     bool   `yaml:"generative"`
}

// applyDefaults fills the settings the file left unset.
func (c *config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = specmatic.DefaultOptions().MaxDepth
	}
	if c.Stub.Host == "" {
		c.Stub.Host = "0.0.0.0"
	}
	if c.Stub.Port == 0 {
		c.Stub.Port = 9000
	}
	if c.Test.TimeoutSeconds == 0 {
		c.Test.TimeoutSeconds = 60
	}
}

// loadConfig reads path and fills in defaults. An empty path falls back to
// defaultConfigFile when it exists.
func loadConfig(path string) (config, error) {
	var cfg config
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", path)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
	default:
		return cfg, errors.Wrapf(err, "read %s", path)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c config) validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (c config) options() specmatic.Options {
	opts := specmatic.DefaultOptions()
	opts.MaxDepth = c.MaxDepth
	opts.GenerativeTests = c.Test.Generative
	opts.LogLevel = c.LogLevel
	return opts
}

func (c config) timeout() time.Duration {
	return time.Duration(c.Test.TimeoutSeconds) * time.Second
}
