// Package settings loads layered YAML configuration, watches it for
// changes, and serves values through dotted keys with secret-manager and
// alias substitution layered on top.
package settings

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aegis-run/aegis/internal/logging"
)

// ConfigFileName is the fixed leaf name every reader watches for.
const ConfigFileName = "config.yaml"

// Reader loads one config.yaml and serves it via dotted-key lookup. Safe
// for concurrent use; Load swaps in a freshly parsed map only on success so
// a bad edit never blanks out previously-good configuration.
type Reader struct {
	Dir      string
	Priority int

	mu   sync.RWMutex
	data map[string]any

	log *logging.Logger
}

// NewReader creates a reader for the config.yaml under dir and performs the
// initial load. A missing file is not an error: the reader starts empty and
// picks up the file later if the watcher is attached and it appears.
func NewReader(dir string, priority int, log *logging.Logger) *Reader {
	r := &Reader{Dir: dir, Priority: priority, data: map[string]any{}, log: log}
	r.Load()
	return r
}

func (r *Reader) path() string {
	return filepath.Join(r.Dir, ConfigFileName)
}

// Load re-reads config.yaml. A parse failure logs the cause and leaves the
// reader's existing data untouched, per the "failed reload never blanks
// state" invariant.
func (r *Reader) Load() {
	path := r.path()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		r.log.Warn("settings file %q does not exist", path)
		return
	}
	if err != nil {
		r.log.Error("error reading settings file %s: %v", path, err)
		return
	}

	scratch := map[string]any{}
	if err := yaml.Unmarshal(raw, &scratch); err != nil {
		r.log.Error("error reading settings file %s: %v", path, err)
		return
	}

	r.mu.Lock()
	r.data = scratch
	r.mu.Unlock()

	r.log.Info("loaded settings file %s", path)
}

// Clear empties the reader's in-memory state, used when the watched file is
// deleted.
func (r *Reader) Clear() {
	r.mu.Lock()
	r.data = map[string]any{}
	r.mu.Unlock()
}

// Get walks a dotted key ("a.b.c") through nested maps. Returns nil if any
// segment is absent.
func (r *Reader) Get(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segments := strings.Split(key, ".")
	var cur any = r.data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := m[seg]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// RawText returns the config.yaml file's current raw contents, for the
// settings-round-trip surface (Store.RawScope).
func (r *Reader) RawText() (string, error) {
	raw, err := os.ReadFile(r.path())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Persist overwrites config.yaml with text and reloads.
func (r *Reader) Persist(text string) error {
	if err := os.MkdirAll(r.Dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(r.path(), []byte(text), 0o600); err != nil {
		return err
	}
	r.Load()
	return nil
}
