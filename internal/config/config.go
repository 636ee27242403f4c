// Package config loads the model configuration produced by the training
// pipeline. The file is the contract between training and inference: input
// size, class count and class names must match the weights or inference is
// meaningless.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig reports a missing, unparsable or inconsistent config file.
var ErrConfig = errors.New("invalid model config")

// Default ONNX graph tensor names, matching what the export script emits.
const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// MaxClasses bounds n_classes so label maps fit an 8-bit image.
const MaxClasses = 256

// Config mirrors the YAML file written next to the weights by the training
// plugin. Treat it as immutable after Load.
type Config struct {
	ImgSize        int      `yaml:"img_size"`
	NClasses       int      `yaml:"n_classes"`
	ClassNames     []string `yaml:"class_names"`
	PretrainedPath *string  `yaml:"pretrained_path"`
	InputName      string   `yaml:"input_name"`
	OutputName     string   `yaml:"output_name"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}

	if cfg.InputName == "" {
		cfg.InputName = DefaultInputName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ImgSize <= 0 {
		return fmt.Errorf("%w: img_size must be positive, got %d", ErrConfig, c.ImgSize)
	}
	if c.NClasses < 1 {
		return fmt.Errorf("%w: n_classes must be at least 1, got %d", ErrConfig, c.NClasses)
	}
	if c.NClasses > MaxClasses {
		return fmt.Errorf("%w: n_classes must not exceed %d, got %d", ErrConfig, MaxClasses, c.NClasses)
	}
	if len(c.ClassNames) == 0 {
		return fmt.Errorf("%w: class_names is required", ErrConfig)
	}
	if len(c.ClassNames) != c.NClasses {
		return fmt.Errorf("%w: got %d class_names for n_classes=%d", ErrConfig, len(c.ClassNames), c.NClasses)
	}
	return nil
}

// Normalize reports whether ImageNet mean/std normalization applies. The
// training side sets pretrained_path when it started from pretrained
// weights, which were trained on normalized inputs.
func (c *Config) Normalize() bool {
	return c.PretrainedPath != nil
}

// Fingerprint identifies the semantic content of the config, so cached
// state built from a different config can be detected as stale.
func (c *Config) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "img_size=%d\n", c.ImgSize)
	fmt.Fprintf(h, "n_classes=%d\n", c.NClasses)
	fmt.Fprintf(h, "class_names=%s\n", strings.Join(c.ClassNames, "\x00"))
	if c.PretrainedPath != nil {
		fmt.Fprintf(h, "pretrained_path=%s\n", *c.PretrainedPath)
	}
	fmt.Fprintf(h, "io=%s,%s\n", c.InputName, c.OutputName)
	return hex.EncodeToString(h.Sum(nil))
}
