// Package config reads the process environment. Every knob has a default
// so an empty environment yields a runnable server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dealroom/internal/rules"
)

type Config struct {
	Port            string
	CORSOrigins     []string
	CleanupInterval time.Duration
	WaitingTTL      time.Duration
	SelectionTTL    time.Duration
	FinishedTTL     time.Duration
}

// FromEnv builds the configuration from PORT, CORS_ORIGINS and the
// ROOM_*_MS knobs. Millisecond values must be positive integers.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:            "3001",
		CORSOrigins:     []string{"*"},
		CleanupInterval: rules.CleanupInterval,
		WaitingTTL:      rules.WaitingTTL,
		SelectionTTL:    rules.SelectionTTL,
		FinishedTTL:     rules.FinishedTTL,
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := []string{}
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}

	for _, knob := range []struct {
		env string
		dst *time.Duration
	}{
		{"ROOM_CLEANUP_INTERVAL_MS", &cfg.CleanupInterval},
		{"ROOM_WAITING_TTL_MS", &cfg.WaitingTTL},
		{"ROOM_SELECTION_TTL_MS", &cfg.SelectionTTL},
		{"ROOM_FINISHED_TTL_MS", &cfg.FinishedTTL},
	} {
		v := os.Getenv(knob.env)
		if v == "" {
			continue
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("%s: invalid millisecond value %q", knob.env, v)
		}
		*knob.dst = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}
