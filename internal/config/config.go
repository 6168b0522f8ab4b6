// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "govd.config"

const (
	envPrefix = "govd"

	DefaultShutdownTimeout = 30 * time.Second
	DefaultResolveInterval = time.Minute
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// tempConfig captures an optional top-level config section
type tempConfig struct {
	Config yaml.Node `yaml:"config,omitempty"`
}

type Config struct {
	DatabasePath           string        `yaml:"databasePath"           split_words:"true"`
	DatabaseMaxConnections int           `yaml:"databaseMaxConnections" split_words:"true"`
	BindAddr               string        `yaml:"bindAddr"               split_words:"true"`
	ApiPort                uint          `yaml:"apiPort"                split_words:"true"`
	MetricsPort            uint          `yaml:"metricsPort"            split_words:"true"`
	RequestTimeout         time.Duration `yaml:"requestTimeout"         split_words:"true"`
	ShutdownTimeout        time.Duration `yaml:"shutdownTimeout"        split_words:"true"`
	LockWindow             time.Duration `yaml:"lockWindow"             split_words:"true"`
	MaxRetries             int           `yaml:"maxRetries"             split_words:"true"`
	RetryBackoff           time.Duration `yaml:"retryBackoff"           split_words:"true"`
	// Zero disables the background sweep of expired proposals
	ResolveInterval time.Duration `yaml:"resolveInterval" split_words:"true"`
	JournalEnabled  bool          `yaml:"journalEnabled"  split_words:"true"`
	Tracing         bool          `yaml:"tracing"`
	TracingStdout   bool          `yaml:"tracingStdout"   split_words:"true"`
	// The verifier worker only runs when an RPC URL is configured
	VerifierRpcUrl        string        `yaml:"verifierRpcUrl"        split_words:"true"`
	VerifierInterval      time.Duration `yaml:"verifierInterval"      split_words:"true"`
	VerifierBatchSize     int           `yaml:"verifierBatchSize"     split_words:"true"`
	VerifierConcurrency   int           `yaml:"verifierConcurrency"   split_words:"true"`
	VerifierConfirmations uint64        `yaml:"verifierConfirmations" split_words:"true"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:           ".govd",
		DatabaseMaxConnections: 1,
		BindAddr:               "0.0.0.0",
		ApiPort:                8080,
		MetricsPort:            12799,
		RequestTimeout:         30 * time.Second,
		ShutdownTimeout:        DefaultShutdownTimeout,
		LockWindow:             models.DefaultLockWindow,
		MaxRetries:             governance.DefaultMaxRetries,
		RetryBackoff:           governance.DefaultRetryBackoff,
		ResolveInterval:        DefaultResolveInterval,
		JournalEnabled:         true,
		VerifierInterval:       30 * time.Second,
		VerifierBatchSize:      100,
		VerifierConcurrency:    4,
		VerifierConfirmations:  1,
	}
}

var globalConfig = DefaultConfig()

// LoadConfig builds the configuration from the defaults, the YAML config
// file and then the environment, each overriding the previous
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		// Check for config file in this path: ~/.govd/govd.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".govd", "govd.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		// Try to check for /etc/govd/govd.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/govd/govd.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if !tempCfg.Config.IsZero() {
			// Overlay the config section onto the defaults
			if err := tempCfg.Config.Decode(cfg); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// Validate reports every setting that can not be used to run the service
func (c *Config) Validate() error {
	var errs []error
	if c.ApiPort == 0 {
		errs = append(errs, errors.New("apiPort must be set"))
	}
	if c.DatabaseMaxConnections < 1 {
		errs = append(errs, errors.New("databaseMaxConnections must be at least 1"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("maxRetries must be at least 1"))
	}
	for name, d := range map[string]time.Duration{
		"requestTimeout":  c.RequestTimeout,
		"shutdownTimeout": c.ShutdownTimeout,
		"lockWindow":      c.LockWindow,
		"retryBackoff":    c.RetryBackoff,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.ResolveInterval < 0 {
		errs = append(errs, fmt.Errorf("resolveInterval must not be negative, got %s", c.ResolveInterval))
	}
	if c.VerifierRpcUrl != "" {
		if c.VerifierInterval <= 0 {
			errs = append(errs, fmt.Errorf("verifierInterval must be positive, got %s", c.VerifierInterval))
		}
		if c.VerifierBatchSize < 1 || c.VerifierConcurrency < 1 {
			errs = append(errs, errors.New("verifierBatchSize and verifierConcurrency must be at least 1"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ApiAddress returns the listen address of the HTTP API
func (c *Config) ApiAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.ApiPort)
}

// MetricsAddress returns the listen address of the metrics endpoint. It is
// empty when metrics are disabled.
func (c *Config) MetricsAddress() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.BindAddr, c.MetricsPort)
}

func GetConfig() *Config {
	return globalConfig
}
