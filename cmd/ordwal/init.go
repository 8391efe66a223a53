package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"ordwal/pkg/config"
)

// initConfig loads the YAML config at path. A missing file yields config.Default().
func initConfig(path string) (config.Config, error) {
	cfg := config.Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// initLogger sets the process-wide slog.Logger (JSON or text).
func initLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logger.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", level, "json", cfg.Logger.JSON)
}

type reservedLog interface {
	Reserved() []byte
	WriteReserved(p []byte) error
	ReadOnly() bool
}

// instanceID returns the id kept in the first 16 reserved header bytes, stamping a new
// one into logs that have none yet.
func instanceID(l reservedLog) (uuid.UUID, error) {
	reserved := l.Reserved()
	if len(reserved) < len(uuid.UUID{}) {
		return uuid.Nil, nil
	}
	raw := reserved[:len(uuid.UUID{})]
	if !bytes.Equal(raw, uuid.Nil[:]) {
		return uuid.FromBytes(raw)
	}
	if l.ReadOnly() {
		return uuid.Nil, nil
	}

	id := uuid.New()
	if err := l.WriteReserved(id[:]); err != nil {
		return uuid.Nil, fmt.Errorf("failed to stamp instance id: %w", err)
	}
	return id, nil
}
