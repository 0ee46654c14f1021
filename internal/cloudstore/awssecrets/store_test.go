package awssecrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aegis-run/aegis/pkg/secretstore"
)

func TestResolveSecretIDAndFieldNoSecretNameNoDot(t *testing.T) {
	id, field := resolveSecretIDAndField("db-password", "")
	assert.Equal(t, "db-password", id)
	assert.Equal(t, "", field)
}

func TestResolveSecretIDAndFieldNoSecretNameWithDot(t *testing.T) {
	id, field := resolveSecretIDAndField("prod/db.password", "")
	assert.Equal(t, "prod/db", id)
	assert.Equal(t, "password", field)
}

func TestResolveSecretIDAndFieldWithSecretName(t *testing.T) {
	id, field := resolveSecretIDAndField("password", "prod/db")
	assert.Equal(t, "prod/db", id)
	assert.Equal(t, "password", field)
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)

	var cfgErr secretstore.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
