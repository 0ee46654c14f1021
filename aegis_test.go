package aegis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolvesPathsAndOpensStores(t *testing.T) {
	t.Setenv("AEGIS_KEYSTORE_PASSWORD", "test-passphrase-0123456789")

	rt, err := New(&Definition{
		ShortName:     "aegis-test",
		ForcedOS:      "linux",
		ForcedDevMode: true,
		AutoCreate:    true,
	}, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Paths)
	assert.NotNil(t, rt.Settings)
	assert.NotNil(t, rt.Secrets)
	assert.NotNil(t, rt.Workers)
	assert.NotNil(t, rt.Metrics)
	assert.Empty(t, rt.Metrics.Addr(), "metrics server is disabled by default")
	assert.Equal(t, "aegis-test", rt.Config.Definition.ShortName)
}

func TestNewRejectsEmptyShortName(t *testing.T) {
	_, err := New(&Definition{}, nil)
	assert.Error(t, err)
}
