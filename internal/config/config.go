// Package config holds the framework's own bootstrap configuration: the
// identity tuple and process-mode flags an embedding application supplies
// once, at construction time. This is distinct from internal/settings,
// which is the layered YAML configuration the embedding application's own
// business logic reads at runtime.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/aegis-run/aegis/internal/apppaths"
	"github.com/aegis-run/aegis/internal/logging"
)

// DefaultLockTimeout is used when a Definition does not set one.
const DefaultLockTimeout = 30 * time.Second

// Definition is the framework identity tuple plus the process-mode flags
// that steer path resolution, shaped like the teacher's Config/Definition
// split but carrying the framework's own field set rather than a
// secret-store/service model.
type Definition struct {
	ShortName   string
	FullName    string
	Version     string
	Description string

	// ForcedOS overrides the host OS for tests; empty uses runtime.GOOS.
	ForcedOS string
	// ForcedDevMode routes every resolved path under the working directory.
	ForcedDevMode bool
	// AutoCreate creates the resolved directories that do not yet exist.
	AutoCreate bool
	// CleanTempOnStart purges the temp root before it is recreated.
	CleanTempOnStart bool
	// DefaultLockTimeout bounds how long a keystore waits for its file
	// lock. Zero means DefaultLockTimeout (the package constant).
	DefaultLockTimeout time.Duration

	// Spawned and WorkerID mark this process as a worker child; see
	// internal/worker and internal/apppaths' Spawned handling.
	Spawned  bool
	WorkerID string
}

// Config bundles a validated Definition with the logger every downstream
// component receives.
type Config struct {
	Definition *Definition
	Logger     *logging.Logger
}

// New validates def (a non-empty ShortName is the only hard requirement,
// since it participates in path construction) and fills in defaults.
// DefaultLockTimeout, when left zero, is resolved from the
// KEYSTORE_LOCK_TIMEOUT environment variable (integer seconds) before
// falling back to the package constant, so a deployment can tighten or
// loosen the keystore lock wait without recompiling the embedding
// application.
func New(def *Definition, log *logging.Logger) (*Config, error) {
	if def.ShortName == "" {
		return nil, errShortNameRequired
	}
	if def.DefaultLockTimeout == 0 {
		def.DefaultLockTimeout = lockTimeoutFromEnv(log)
	}
	return &Config{Definition: def, Logger: log}, nil
}

// lockTimeoutFromEnv reads KEYSTORE_LOCK_TIMEOUT as whole seconds; an
// unset or invalid value falls back to DefaultLockTimeout.
func lockTimeoutFromEnv(log *logging.Logger) time.Duration {
	raw := os.Getenv("KEYSTORE_LOCK_TIMEOUT")
	if raw == "" {
		return DefaultLockTimeout
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		if log != nil {
			log.Warn("ignoring invalid KEYSTORE_LOCK_TIMEOUT %q, using default", raw)
		}
		return DefaultLockTimeout
	}
	return time.Duration(seconds) * time.Second
}

// PathOptions projects the parts of Definition internal/apppaths.Resolve
// needs.
func (c *Config) PathOptions() apppaths.Options {
	return apppaths.Options{
		ShortName:     c.Definition.ShortName,
		ForcedOS:      c.Definition.ForcedOS,
		ForcedDevMode: c.Definition.ForcedDevMode,
		AutoCreate:    c.Definition.AutoCreate,
		CleanTemp:     c.Definition.CleanTempOnStart,
		Spawned:       c.Definition.Spawned,
		WorkerID:      c.Definition.WorkerID,
	}
}

type configError string

func (e configError) Error() string { return string(e) }

const errShortNameRequired = configError("config: Definition.ShortName is required")
