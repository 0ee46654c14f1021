// Package aegis is the framework's public entrypoint: an embedding
// application declares its identity with a config.Definition, calls
// New, and receives a Runtime wired from the four path roots down
// through the layered settings store and the local/cloud secret
// managers. Everything below this package is internal/ — this file and
// config.Definition are the only import surface a host application needs.
package aegis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aegis-run/aegis/internal/apppaths"
	"github.com/aegis-run/aegis/internal/audit"
	"github.com/aegis-run/aegis/internal/cloudstore"
	"github.com/aegis-run/aegis/internal/config"
	"github.com/aegis-run/aegis/internal/localstore"
	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/internal/metrics"
	"github.com/aegis-run/aegis/internal/secretmanager"
	"github.com/aegis-run/aegis/internal/settings"
	"github.com/aegis-run/aegis/internal/worker"
	"github.com/aegis-run/aegis/pkg/secretstore"
)

// Definition re-exports internal/config's bootstrap identity tuple so a
// host application never has to import an internal package directly.
type Definition = config.Definition

// Runtime bundles the components an embedding application actually calls
// once aegis.New has resolved paths and opened the local/cloud stores. It
// replaces the module-level singletons (AbstractSettingsManager,
// AbstractSecretManager, MultiProcessingManager) the Python original
// relied on with one struct a caller passes around explicitly.
type Runtime struct {
	Config   *config.Config
	Paths    *apppaths.Paths
	Settings *settings.Store
	Secrets  *secretmanager.Manager
	Workers  *worker.Coordinator
	Audit    *audit.Handler
	Log      *logging.Logger
	Metrics  *metrics.Server

	localStores *localstore.Manager
}

// New resolves paths, opens the local keystores, loads the layered
// settings, and builds every cloud store configured under
// secrets_manager.cloud_stores in settings. A cloud store adapter failing
// to build only logs a warning and is skipped — mirroring the original's
// per-store degrade-don't-abort policy for the local stores — except a
// totally absent User_Local_Store, which is fatal since it is the one
// mandatory store.
func New(def *Definition, log *logging.Logger) (*Runtime, error) {
	if log == nil {
		log = logging.New(false, false)
	}

	cfg, err := config.New(def, log)
	if err != nil {
		return nil, err
	}

	paths, err := apppaths.Resolve(cfg.PathOptions())
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	aud := audit.NewStderr()

	customPassword := os.Getenv("AEGIS_KEYSTORE_PASSWORD")
	localStores, err := localstore.NewManager(paths.UsrData, paths.AppData, def.ShortName, customPassword, cfg.Definition.DefaultLockTimeout, log, aud)
	if err != nil {
		return nil, fmt.Errorf("opening local stores: %w", err)
	}

	containerMode := os.Getenv("AEGIS_CONTAINER_MODE") == "True"
	settingsStore := settings.NewStore(paths.UsrData, paths.AppData, containerMode, log)

	clouds := buildCloudStores(settingsStore, log)
	secrets := secretmanager.New(localStores, clouds, log)
	settingsStore.SetSecretLookup(secretLookupAdapter{secrets})

	coordinator := worker.NewCoordinator(paths.Logging, log)

	metricsServer := buildMetricsServer(settingsStore)
	if err := metricsServer.Start(); err != nil {
		log.Warn("metrics server did not start: %v", err)
	}

	return &Runtime{
		Config:      cfg,
		Paths:       paths,
		Settings:    settingsStore,
		Secrets:     secrets,
		Workers:     coordinator,
		Audit:       aud,
		Log:         log,
		Metrics:     metricsServer,
		localStores: localStores,
	}, nil
}

// buildMetricsServer reads metrics.enabled, metrics.port, and metrics.path
// from settings. Metrics are off by default; an embedding application
// opts in the same way it opts into a cloud store, through its own
// settings file.
func buildMetricsServer(s *settings.Store) *metrics.Server {
	cfg := metrics.DefaultServerConfig()
	cfg.Enabled = s.GetString("metrics.enabled", "false") == "true"
	if port := s.GetString("metrics.port", ""); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Port = n
		}
	}
	if path := s.GetString("metrics.path", ""); path != "" {
		cfg.Path = path
	}
	return metrics.NewServer(cfg)
}

// buildCloudStores reads secrets_manager.cloud_stores.<name>.store_type
// for every name listed under secrets_manager.cloud_stores and constructs
// each through the registry. Settings alone cannot enumerate map keys
// through the dotted-key Store façade, so the list of names itself is
// read as a comma-separated secrets_manager.cloud_store_names setting —
// an embedding application lists its own stores there.
func buildCloudStores(s *settings.Store, log *logging.Logger) []secretstore.CloudStore {
	names := s.GetString("secrets_manager.cloud_store_names", "")
	if names == "" {
		return nil
	}

	registry := cloudstore.NewRegistry()
	reader := settingsReaderAdapter{s}
	ctx := context.Background()

	var stores []secretstore.CloudStore
	for _, raw := range strings.Split(names, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		storeType := s.GetString("secrets_manager.cloud_stores."+name+".store_type", "")
		priority := 10
		store, err := registry.Build(ctx, storeType, name, priority, reader)
		if err != nil {
			log.Warn("skipping cloud store %s (%s): %v", name, storeType, err)
			continue
		}
		stores = append(stores, store)
	}
	return stores
}

// settingsReaderAdapter narrows settings.Store to cloudstore.SettingsReader.
type settingsReaderAdapter struct{ s *settings.Store }

func (a settingsReaderAdapter) GetString(key, defaultValue string) string {
	return a.s.GetString(key, defaultValue)
}

// secretLookupAdapter satisfies settings.SecretLookup, which predates C6's
// context-aware cloud store calls: a settings lookup is always a
// synchronous background operation local to process startup/reload, so a
// fresh context.Background() per call is correct here.
type secretLookupAdapter struct{ m *secretmanager.Manager }

func (a secretLookupAdapter) GetSecret(key, defaultValue, storeName string) string {
	return a.m.GetSecret(context.Background(), key, defaultValue, storeName)
}

// Close releases the local keystores' sealed passphrases, stops the
// settings file watcher, and shuts down the metrics server if it was
// started.
func (r *Runtime) Close() {
	r.Settings.Close()
	r.Secrets.Close()
	_ = r.Metrics.Stop(context.Background())
}
