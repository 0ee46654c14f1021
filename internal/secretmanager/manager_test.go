package secretmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-run/aegis/internal/audit"
	"github.com/aegis-run/aegis/internal/localstore"
	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/pkg/secretstore"
)

type fakeCloud struct {
	name      string
	priority  int
	readOnly  bool
	available bool
	values    map[string]string
}

func (f *fakeCloud) Name() string                       { return f.name }
func (f *fakeCloud) Priority() int                      { return f.priority }
func (f *fakeCloud) ReadOnly() bool                     { return f.readOnly }
func (f *fakeCloud) Available(ctx context.Context) bool { return f.available }
func (f *fakeCloud) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}
func (f *fakeCloud) Set(ctx context.Context, key, value string) error {
	if f.readOnly {
		return secretstore.ConfigError{Store: f.name, Message: "read-only"}
	}
	f.values[key] = value
	return nil
}
func (f *fakeCloud) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func newTestManager(t *testing.T, clouds []secretstore.CloudStore) *Manager {
	t.Helper()
	log := logging.New(false, true)
	local, err := localstore.NewManager(t.TempDir(), t.TempDir(), "aegistest", "", 0, log, audit.NewStderr())
	require.NoError(t, err)
	return New(local, clouds, log)
}

func TestGetSecretEmptyKeyReturnsDefault(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Equal(t, "default", m.GetSecret(context.Background(), "", "default", ""))
	assert.Equal(t, "default", m.GetSecret(context.Background(), "   ", "default", ""))
}

func TestGetSecretLocalBeforeCloud(t *testing.T) {
	ctx := context.Background()
	cloud := &fakeCloud{name: "aws-prod", priority: 1, available: true, values: map[string]string{"k": "from-cloud"}}
	m := newTestManager(t, []secretstore.CloudStore{cloud})

	require.NoError(t, m.SetSecret(ctx, "k", "from-local", ""))
	assert.Equal(t, "from-local", m.GetSecret(ctx, "k", "default", ""))
}

func TestGetSecretFallsBackToCloudWhenLocalMisses(t *testing.T) {
	ctx := context.Background()
	cloud := &fakeCloud{name: "aws-prod", priority: 1, available: true, values: map[string]string{"only-in-cloud": "cloud-value"}}
	m := newTestManager(t, []secretstore.CloudStore{cloud})

	assert.Equal(t, "cloud-value", m.GetSecret(ctx, "only-in-cloud", "default", ""))
}

func TestGetSecretExplicitStoreNameIsStrict(t *testing.T) {
	ctx := context.Background()
	unavailable := &fakeCloud{name: "vault", priority: 1, available: false, values: map[string]string{"k": "v"}}
	available := &fakeCloud{name: "aws-prod", priority: 2, available: true, values: map[string]string{"k": "from-aws"}}
	m := newTestManager(t, []secretstore.CloudStore{unavailable, available})

	// Even though "aws-prod" has the value, asking for "vault" explicitly
	// must not fall through to a different store.
	assert.Equal(t, "default", m.GetSecret(ctx, "k", "default", "vault"))
	assert.Equal(t, "from-aws", m.GetSecret(ctx, "k", "default", "aws-prod"))
}

func TestGetSecretStoreQualifiedKey(t *testing.T) {
	ctx := context.Background()
	cloud := &fakeCloud{name: "aws-prod", priority: 1, available: true, values: map[string]string{"db.password": "qualified-value"}}
	m := newTestManager(t, []secretstore.CloudStore{cloud})

	assert.Equal(t, "qualified-value", m.GetSecret(ctx, "aws-prod.db.password", "default", ""))
}

func TestGetSecretPriorityOrderAmongCloudStores(t *testing.T) {
	ctx := context.Background()
	lowPriority := &fakeCloud{name: "slow", priority: 10, available: true, values: map[string]string{"k": "low-priority-value"}}
	highPriority := &fakeCloud{name: "fast", priority: 1, available: true, values: map[string]string{"k": "high-priority-value"}}
	m := newTestManager(t, []secretstore.CloudStore{lowPriority, highPriority})

	assert.Equal(t, "high-priority-value", m.GetSecret(ctx, "k", "default", ""))
}

func TestSetSecretRefusesReadOnlyCloudStore(t *testing.T) {
	ctx := context.Background()
	ro := &fakeCloud{name: "ro-store", priority: 1, available: true, readOnly: true, values: map[string]string{}}
	m := newTestManager(t, []secretstore.CloudStore{ro})

	require.NoError(t, m.SetSecret(ctx, "k", "v", "ro-store"))
	_, ok, _ := ro.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSetPersistentSettingTargetsUserLocalStore(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.SetPersistentSetting("persisted-key", "persisted-value"))
	assert.Equal(t, "persisted-value", m.GetSecret(context.Background(), "persisted-key", "default", ""))
}
