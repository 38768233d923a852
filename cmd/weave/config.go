package main

import (
	"bytes"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	jvmyield "github.com/wippyai/jvm-yield"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/weave"
)

// fileConfig is the YAML layout of the -config file.
//
//	yield: {owner: com/acme/Numbers, name: yieldReturn}
//	break: {name: yieldBreak}
//	methods: ["com/acme/Numbers.*"]
//	on_error: abort
//	log_level: debug
type fileConfig struct {
	Yield       weave.CallSite `yaml:"yield"`
	Break       weave.CallSite `yaml:"break"`
	StateField  string         `yaml:"state_field"`
	SlotPrefix  string         `yaml:"slot_prefix"`
	OnError     string         `yaml:"on_error"`
	LogLevel    string         `yaml:"log_level"`
	Methods     []string       `yaml:"methods"`
	StrictClose bool           `yaml:"strict_close"`
}

func loadConfig(path string) (*fileConfig, error) {
	if path == "" {
		return &fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFound(errors.PhaseConfig, "config file", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "read config")
	}
	return parseConfig(data)
}

// parseConfig decodes a YAML config. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func parseConfig(data []byte) (*fileConfig, error) {
	fc := &fileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse config")
	}
	return fc, nil
}

// transformConfig converts the file layout into a jvmyield.Config.
func (fc *fileConfig) transformConfig() (jvmyield.Config, error) {
	cfg := jvmyield.Config{
		Weave: weave.Config{
			Yield:       fc.Yield,
			Break:       fc.Break,
			StateField:  fc.StateField,
			SlotPrefix:  fc.SlotPrefix,
			StrictClose: fc.StrictClose,
		},
	}
	switch strings.ToLower(fc.OnError) {
	case "", "skip":
		cfg.OnError = jvmyield.Skip
	case "abort":
		cfg.OnError = jvmyield.Abort
	default:
		return cfg, errors.New(errors.PhaseConfig, errors.KindUsage).
			Value(fc.OnError).
			Detail("on_error: unknown policy %q (want skip or abort)", fc.OnError).
			Build()
	}
	m, err := methodMatcher(fc.Methods)
	if err != nil {
		return cfg, err
	}
	if m != nil {
		cfg.Methods = m
	}
	return cfg, nil
}

// methodMatcher parses the methods list. Nil means the default selection.
func methodMatcher(patterns []string) (weave.MethodMatcher, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	sel, err := weave.NewSelector(patterns...)
	if err != nil {
		return nil, err
	}
	return sel, nil
}

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindUsage, err, "log_level")
		}
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
