package xlbind

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the Mapper options.
type Config struct {
	Format  string    `yaml:"format" validate:"omitempty,oneof=modern legacy xlsx xls"`
	Locale  string    `yaml:"locale"`
	Bundles []string  `yaml:"bundles" validate:"dive,required"`
	Strict  bool      `yaml:"strict"`
	Charset string    `yaml:"charset"`
	Dates   []string  `yaml:"datePatterns" validate:"dive,required"`
	Log     LogConfig `yaml:"log"`
}

// LogConfig configures the logrus logger built by Config.Logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds a logrus logger from the log settings.
func (c *Config) Logger() (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	level := logrus.WarnLevel
	if c.Log.Level != "" {
		var err error
		level, err = logrus.ParseLevel(c.Log.Level)
		if err != nil {
			return nil, err
		}
	}
	l.SetLevel(level)
	if strings.EqualFold(c.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}

// Options converts the config into Mapper options. Bundle files are read
// here.
func (c *Config) Options() ([]Option, error) {
	format, err := ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	log, err := c.Logger()
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithFormat(format),
		WithStrict(c.Strict),
		WithLogger(log),
	}
	if c.Locale != "" {
		opts = append(opts, WithLocale(c.Locale))
	}
	if c.Charset != "" {
		opts = append(opts, WithLegacyCharset(c.Charset))
	}
	if len(c.Dates) > 0 {
		opts = append(opts, WithDatePatterns(c.Dates...))
	}
	for _, path := range c.Bundles {
		b, err := LoadBundleFile(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBundle(b))
	}
	return opts, nil
}

// LoadDescriptor reads a YAML workbook descriptor. Sheets loaded this way
// have no record type; their columns declare a type and records are maps.
func LoadDescriptor(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor decodes a YAML workbook descriptor.
func ParseDescriptor(data []byte) (*Workbook, error) {
	var wb Workbook
	if err := yaml.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return &wb, nil
}
