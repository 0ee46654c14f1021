package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aegis-run/aegis/internal/logging"
)

// SecretLookup is the narrow slice of the secret manager's façade the
// settings layer needs. Defined here (rather than importing
// internal/secretmanager) to avoid a cycle: the secret manager itself
// eventually needs settings for cloud store configuration.
type SecretLookup interface {
	GetSecret(key, defaultValue, storeName string) string
}

// Store is the ordered collection of Readers plus the alias-substitution
// and secret-manager-first lookup policy.
type Store struct {
	readers  []*Reader
	watchers []*Watcher
	secrets  SecretLookup

	usrDataPath string
	appDataPath string

	log *logging.Logger
}

// NewStore builds the layered reader set. In container mode only one
// config directory (cwd/config) is consulted; otherwise cwd/config,
// appDataPath, and usrDataPath are layered at priorities 300/200/100.
func NewStore(usrDataPath, appDataPath string, containerMode bool, log *logging.Logger) *Store {
	s := &Store{usrDataPath: usrDataPath, appDataPath: appDataPath, log: log}

	cwd, _ := os.Getwd()
	appConfigDir := cwdConfigDir(cwd)

	if containerMode {
		s.addReader(appConfigDir, 300)
	} else {
		s.addReader(appConfigDir, 300)
		s.addReader(appDataPath, 200)
		s.addReader(usrDataPath, 100)
	}

	sort.Slice(s.readers, func(i, j int) bool { return s.readers[i].Priority < s.readers[j].Priority })

	return s
}

func cwdConfigDir(cwd string) string {
	return cwd + string(os.PathSeparator) + "config"
}

func (s *Store) addReader(dir string, priority int) {
	r := NewReader(dir, priority, s.log)
	s.readers = append(s.readers, r)
	if w, err := StartWatcher(r, s.log); err == nil && w != nil {
		s.watchers = append(s.watchers, w)
	}
}

// SetSecretLookup wires the secret manager in after both have been
// constructed, breaking the settings/secretmanager import cycle.
func (s *Store) SetSecretLookup(sl SecretLookup) {
	s.secrets = sl
}

// Close stops every reader's file watcher.
func (s *Store) Close() {
	for _, w := range s.watchers {
		w.Close()
	}
}

// Get resolves a dotted key: secret manager first (if wired and a
// non-empty value is found), then readers in priority order, applying
// alias substitution to whatever is found. Empty or whitespace-only keys
// always return defaultValue.
func (s *Store) Get(key, defaultValue string) any {
	if strings.TrimSpace(key) == "" {
		return defaultValue
	}

	if s.secrets != nil {
		if v := s.secrets.GetSecret(key, "", ""); v != "" {
			return v
		}
	}

	var value any
	for _, r := range s.readers {
		value = r.Get(key)
		if value != nil {
			break
		}
	}

	value = s.replaceValue(value)
	if isEmpty(value) {
		return defaultValue
	}
	return value
}

// GetString is a convenience wrapper for the common case of a scalar
// string setting.
func (s *Store) GetString(key, defaultValue string) string {
	v := s.Get(key, defaultValue)
	if v == nil {
		return defaultValue
	}
	return fmt.Sprintf("%v", v)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// RawScope returns the raw config.yaml text for one of "app", "all_user",
// "current_user", plus whether that location accepted a round-trip write
// probe (i.e. is not read-only).
func (s *Store) RawScope(scope string) (string, bool, error) {
	r := s.readerForScope(scope)
	if r == nil {
		return "", false, fmt.Errorf("the settings scope %q is not recognised", scope)
	}
	text, err := r.RawText()
	if err != nil {
		return "", false, err
	}
	writable := r.Persist(text) == nil
	return text, writable, nil
}

// Persist writes text into the config.yaml for scope and reloads it.
func (s *Store) Persist(scope, text string) error {
	r := s.readerForScope(scope)
	if r == nil {
		return fmt.Errorf("the settings scope %q is not recognised", scope)
	}
	return r.Persist(text)
}

func (s *Store) readerForScope(scope string) *Reader {
	var target string
	switch scope {
	case "app":
		cwd, _ := os.Getwd()
		target = cwdConfigDir(cwd)
	case "all_user":
		target = s.appDataPath
	case "current_user":
		target = s.usrDataPath
	default:
		return nil
	}
	for _, r := range s.readers {
		if r.Dir == target {
			return r
		}
	}
	return nil
}
