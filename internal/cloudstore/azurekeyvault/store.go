// Package azurekeyvault adapts Azure Key Vault to the
// secretstore.CloudStore capability.
package azurekeyvault

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/aegis-run/aegis/pkg/secretstore"
)

// Store is a secretstore.CloudStore backed by one Azure Key Vault.
type Store struct {
	name      string
	priority  int
	vaultName string

	client    *azsecrets.Client
	available bool
}

// Options configures one Azure Key Vault store instance.
type Options struct {
	Name       string
	Priority   int
	VaultName  string // the "azure_keyvault" setting, e.g. "my-vault"
	Credential azcore.TokenCredential
}

// New constructs an Azure Key Vault store. If opts.Credential is nil,
// azidentity.NewDefaultAzureCredential supplies the default credential
// chain, matching the original's DefaultAzureCredential fallback.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.VaultName == "" {
		return nil, secretstore.ConfigError{Store: opts.Name, Message: "azure_keyvault setting is required"}
	}

	cred := opts.Credential
	if cred == nil {
		var err error
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, secretstore.ConfigError{Store: opts.Name, Message: "acquiring default Azure credential: " + err.Error()}
		}
	}

	vaultURL := "https://" + opts.VaultName + ".vault.azure.net"
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, secretstore.ConfigError{Store: opts.Name, Message: "creating Key Vault client: " + err.Error()}
	}

	s := &Store{name: opts.Name, priority: opts.Priority, vaultName: opts.VaultName, client: client}

	pager := client.NewListSecretPropertiesPager(nil)
	_, probeErr := pager.NextPage(ctx)
	s.available = probeErr == nil
	return s, nil
}

func (s *Store) Name() string                       { return s.name }
func (s *Store) Priority() int                      { return s.priority }
func (s *Store) ReadOnly() bool                     { return false }
func (s *Store) Available(ctx context.Context) bool { return s.available }

// Get mirrors the original's handling of Key Vault's "invalid name" error as
// a benign miss rather than a logged failure, since secret names routinely
// get probed with characters Key Vault rejects.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.client.GetSecret(ctx, key, "", nil)
	if err != nil {
		if strings.Contains(err.Error(), "invalid name") || strings.Contains(err.Error(), "SecretNotFound") {
			return "", false, nil
		}
		return "", false, secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return strings.TrimSpace(*resp.Value), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.SetSecret(ctx, key, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.BeginDeleteSecret(ctx, key, nil)
	if err != nil {
		if strings.Contains(err.Error(), "SecretNotFound") {
			return nil
		}
		return secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return nil
}
