package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-run/aegis/internal/audit"
	"github.com/aegis-run/aegis/internal/fingerprint"
	"github.com/aegis-run/aegis/internal/keystore"
	"github.com/aegis-run/aegis/internal/logging"
)

func legacyPasswordForTest(v2Path string) (string, error) {
	return fingerprint.DeriveLegacyV2Password(v2Path)
}

func seedKeystore(t *testing.T, path, password string) *keystore.Keystore {
	t.Helper()
	return keystore.Open(path, password, 0)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	log := logging.New(false, true)
	aud := audit.NewStderr()

	s, err := Open("User_Local_Store", 0, dir, "aegis-test", "", 0, log, aud)
	require.NoError(t, err)
	return s, dir
}

func TestOpenCreatesV3KeystoreOnFreshDir(t *testing.T) {
	s, dir := newTestStore(t)
	assert.True(t, s.Available())
	assert.False(t, s.ReadOnly())

	_, err := os.Stat(filepath.Join(dir, "aegis-test.v3keystore"))
	assert.NoError(t, err)
}

func TestSetGetDeleteSecretMaintainsIndex(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.SetSecret("db.password", "hunter2"))

	v, err := s.GetSecret("db.password", "")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	index, err := s.GetIndex()
	require.NoError(t, err)
	assert.Contains(t, index, "db.password")

	require.NoError(t, s.DeleteSecret("db.password"))
	index, err = s.GetIndex()
	require.NoError(t, err)
	assert.NotContains(t, index, "db.password")

	v, err = s.GetSecret("db.password", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestSetSecretRejectsInvalidKey(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SetSecret("../escape", "v")
	assert.Error(t, err)
}

func TestSetSecretRejectsOversizedValue(t *testing.T) {
	s, _ := newTestStore(t)
	big := make([]byte, 70*1024)
	err := s.SetSecret("k", string(big))
	assert.Error(t, err)
}

func TestDeprecatedKeystoreLogsWarningButDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aegis-test.keystore"), []byte("legacy"), 0o600))

	log := logging.New(false, true)
	aud := audit.NewStderr()
	s, err := Open("User_Local_Store", 0, dir, "aegis-test", "", 0, log, aud)
	require.NoError(t, err)
	assert.True(t, s.Available())
}

func TestMigrationFromV2ToV3(t *testing.T) {
	dir := t.TempDir()
	appName := "aegis-test"
	v2Path := filepath.Join(dir, appName+".v2keystore")

	log := logging.New(false, true)
	aud := audit.NewStderr()

	// Seed a v2 keystore using the legacy derivation directly.
	v2Pw, err := legacyPasswordForTest(v2Path)
	if err != nil {
		t.Skipf("no legacy machine id available in this environment: %v", err)
	}

	seedStore := seedKeystore(t, v2Path, v2Pw)
	require.NoError(t, seedStore.Set("api.key", "abc123"))

	s, err := Open("User_Local_Store", 0, dir, appName, "", 0, log, aud)
	require.NoError(t, err)
	assert.Equal(t, "v3", s.version)

	v, err := s.GetSecret("api.key", "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	_, statErr := os.Stat(v2Path + "_old")
	assert.NoError(t, statErr)
}
