// Package cloudstore is the factory-map registry for pluggable
// secretstore.CloudStore adapters, read out of the
// secrets_manager.cloud_stores.<name> settings tree.
package cloudstore

import (
	"context"
	"fmt"

	"github.com/aegis-run/aegis/internal/cloudstore/awssecrets"
	"github.com/aegis-run/aegis/internal/cloudstore/azurekeyvault"
	"github.com/aegis-run/aegis/internal/cloudstore/keychain"
	"github.com/aegis-run/aegis/pkg/secretstore"
)

// SettingsReader is the narrow slice of internal/settings.Store a factory
// needs to read its own cloud_stores.<name>.* keys.
type SettingsReader interface {
	GetString(key, defaultValue string) string
}

// Factory builds one CloudStore from its settings-derived configuration.
type Factory func(ctx context.Context, name string, priority int, settings SettingsReader) (secretstore.CloudStore, error)

// Registry maps a store_type string to the Factory that can build it.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry with aws, azure, and keychain pre-registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.RegisterFactory("aws", newAWSFactory)
	r.RegisterFactory("azure", newAzureFactory)
	r.RegisterFactory("keychain", newKeychainFactory)
	return r
}

// RegisterFactory lets an embedding application add its own store type.
func (r *Registry) RegisterFactory(storeType string, f Factory) {
	r.factories[storeType] = f
}

// Build constructs a named store of the given type.
func (r *Registry) Build(ctx context.Context, storeType, name string, priority int, settings SettingsReader) (secretstore.CloudStore, error) {
	f, ok := r.factories[storeType]
	if !ok {
		return nil, fmt.Errorf("unknown cloud store type %q for store %q", storeType, name)
	}
	return f(ctx, name, priority, settings)
}

func storeSetting(settings SettingsReader, name, key, def string) string {
	return settings.GetString(fmt.Sprintf("secrets_manager.cloud_stores.%s.%s", name, key), def)
}

func newAWSFactory(ctx context.Context, name string, priority int, settings SettingsReader) (secretstore.CloudStore, error) {
	return awssecrets.New(ctx, awssecrets.Options{
		Name:            name,
		Priority:        priority,
		Region:          storeSetting(settings, name, "region", ""),
		SecretName:      storeSetting(settings, name, "secret_name", ""),
		AssumeRoleARN:   storeSetting(settings, name, "assume_role", ""),
		RoleSessionName: storeSetting(settings, name, "role_session_name", ""),
	})
}

func newAzureFactory(ctx context.Context, name string, priority int, settings SettingsReader) (secretstore.CloudStore, error) {
	return azurekeyvault.New(ctx, azurekeyvault.Options{
		Name:      name,
		Priority:  priority,
		VaultName: storeSetting(settings, name, "azure_keyvault", ""),
	})
}

func newKeychainFactory(ctx context.Context, name string, priority int, settings SettingsReader) (secretstore.CloudStore, error) {
	return keychain.New(keychain.Options{
		Name:          name,
		Priority:      priority,
		ServicePrefix: storeSetting(settings, name, "service_prefix", ""),
	}), nil
}
