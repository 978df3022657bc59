// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the supervisor service.
//
// The numeric budgets are deliberate placeholders, not derived from any
// product requirement; deployments tune them via YAML file or
// environment (see cmd/supervisor).
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// StepLimit is the global supervisor turn budget per submitted
	// turn. Exhausting it forces a terminal "unable to complete"
	// response regardless of retry budgets.
	StepLimit int `yaml:"step_limit"`

	// ViolationRetries is the number of compensating supervisor turns
	// allowed for the same invariant rule before hard-failing the turn.
	ViolationRetries int `yaml:"violation_retries"`

	// SpecialistRetries is the adapter-level retry budget per
	// specialist invocation.
	SpecialistRetries int `yaml:"specialist_retries"`

	// DecisionTimeout bounds each supervisor reasoning call.
	DecisionTimeout time.Duration `yaml:"decision_timeout"`

	// SpecialistTimeout bounds each specialist invocation attempt.
	SpecialistTimeout time.Duration `yaml:"specialist_timeout"`

	// MaxConcurrentTurns caps turns in flight across all sessions
	// (0 = unlimited). Per-session serialization is always enforced.
	MaxConcurrentTurns int64 `yaml:"max_concurrent_turns"`

	// RateLimitRPS and RateLimitBurst configure the per-client HTTP
	// rate limiter (RPS 0 disables it).
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// PolicyBackend selects the decision backend: heuristic or openai.
	PolicyBackend string `yaml:"policy_backend"`

	// OpenAIModel is the model used by the openai policy backend.
	OpenAIModel string `yaml:"openai_model"`

	// OTelEndpoint is the OTLP gRPC collector endpoint ("" = tracing
	// disabled).
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		Port:               12310,
		StepLimit:          25,
		ViolationRetries:   2,
		SpecialistRetries:  1,
		DecisionTimeout:    30 * time.Second,
		SpecialistTimeout:  30 * time.Second,
		MaxConcurrentTurns: 0,
		RateLimitRPS:       10,
		RateLimitBurst:     20,
		PolicyBackend:      "heuristic",
		OpenAIModel:        "gpt-4o-mini",
	}
}

// withDefaults fills zero-valued tunables from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.StepLimit <= 0 {
		c.StepLimit = def.StepLimit
	}
	if c.ViolationRetries < 0 {
		c.ViolationRetries = def.ViolationRetries
	}
	if c.SpecialistRetries < 0 {
		c.SpecialistRetries = def.SpecialistRetries
	}
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = def.DecisionTimeout
	}
	if c.SpecialistTimeout <= 0 {
		c.SpecialistTimeout = def.SpecialistTimeout
	}
	if c.PolicyBackend == "" {
		c.PolicyBackend = def.PolicyBackend
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = def.OpenAIModel
	}
	return c
}

// LoadConfig reads a YAML config file and overlays it onto the
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.withDefaults(), nil
}

// ConfigWatcher reloads tunables when the config file changes.
//
// Only budgets and timeouts are hot-reloaded; the specialist registry
// is configuration fixed before sessions start and is never touched by
// a reload. Reloads take effect for turns started after the change.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	done    chan struct{}
}

// WatchConfig watches path and calls onChange with each successfully
// reloaded Config. Parse failures are logged and skipped.
func WatchConfig(path string, onChange func(Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &ConfigWatcher{
		watcher: watcher,
		path:    path,
		done:    make(chan struct{}),
	}

	go w.run(onChange)
	return w, nil
}

func (w *ConfigWatcher) run(onChange func(Config)) {
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadConfig(w.path)
			if err != nil {
				slog.Warn("Config reload failed, keeping previous tunables",
					slog.String("path", w.path),
					slog.String("error", err.Error()),
				)
				continue
			}

			slog.Info("Config reloaded",
				slog.String("path", w.path),
				slog.Int("step_limit", cfg.StepLimit),
			)
			onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher.
func (w *ConfigWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
