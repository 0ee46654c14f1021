// Package keychain adapts the host OS keychain (macOS Keychain, Windows
// Credential Manager, Linux Secret Service) to the secretstore.CloudStore
// capability via github.com/zalando/go-keyring. This is a supplement to the
// two mandatory local keystores, offered to desktop-hosted applications as
// a third store option, never a replacement for them.
package keychain

import (
	"context"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/aegis-run/aegis/pkg/secretstore"
)

const defaultPriority = 2

// Store is a secretstore.CloudStore backed by the OS keychain. Keys are
// addressed service/account, same convention as the teacher's keychain
// provider; servicePrefix, if set, is prepended to the service component.
type Store struct {
	name          string
	priority      int
	servicePrefix string
	available     bool
}

// Options configures one keychain store instance.
type Options struct {
	Name          string
	Priority      int // 0 means defaultPriority
	ServicePrefix string
}

// New probes keychain availability by attempting a harmless round trip
// (set then delete a sentinel entry), matching internal/localstore's
// writability probe idiom.
func New(opts Options) *Store {
	priority := opts.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	s := &Store{name: opts.Name, priority: priority, servicePrefix: opts.ServicePrefix}

	probeService := s.applyPrefix("aegis-probe")
	if err := keyring.Set(probeService, "probe", "probe"); err == nil {
		keyring.Delete(probeService, "probe")
		s.available = true
	}
	return s
}

func (s *Store) Name() string                       { return s.name }
func (s *Store) Priority() int                       { return s.priority }
func (s *Store) ReadOnly() bool                      { return false }
func (s *Store) Available(ctx context.Context) bool  { return s.available }

func (s *Store) applyPrefix(service string) string {
	if s.servicePrefix == "" {
		return service
	}
	if strings.HasPrefix(service, s.servicePrefix) {
		return service
	}
	return s.servicePrefix + "." + service
}

func splitKey(key string) (service, account string) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return "aegis", key
	}
	return parts[0], parts[1]
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	service, account := splitKey(key)
	v, err := keyring.Get(s.applyPrefix(service), account)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", false, nil
		}
		return "", false, secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	service, account := splitKey(key)
	if err := keyring.Set(s.applyPrefix(service), account, value); err != nil {
		return secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	service, account := splitKey(key)
	err := keyring.Delete(s.applyPrefix(service), account)
	if err != nil && err != keyring.ErrNotFound {
		return secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return nil
}
