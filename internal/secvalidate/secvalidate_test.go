package secvalidate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSecretKey(t *testing.T) {
	require.NoError(t, ValidateSecretKey("api.key-1"))
	require.NoError(t, ValidateSecretKey("User_Local_Store.api"))

	assert.Error(t, ValidateSecretKey(""))
	assert.Error(t, ValidateSecretKey("a/../b"))
	assert.Error(t, ValidateSecretKey("bad key with spaces"))
	assert.Error(t, ValidateSecretKey("CON"))
	assert.Error(t, ValidateSecretKey("com1"))
	assert.Error(t, ValidateSecretKey(strings.Repeat("a", 256)))
}

func TestValidateSecretValue(t *testing.T) {
	require.NoError(t, ValidateSecretValue("hunter2"))
	assert.Error(t, ValidateSecretValue(""))
	assert.Error(t, ValidateSecretValue(strings.Repeat("a", MaxSecretValueBytes+1)))
}

func TestValidateFilePath(t *testing.T) {
	_, err := ValidateFilePath("../etc/passwd", nil)
	assert.Error(t, err)

	resolved, err := ValidateFilePath("/tmp/app/secrets.yaml", []string{"/tmp/app"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/app/secrets.yaml", resolved)

	_, err = ValidateFilePath("/etc/secrets.yaml", []string{"/tmp/app"})
	assert.Error(t, err)
}

func TestValidateYAMLContent(t *testing.T) {
	require.NoError(t, ValidateYAMLContent("a: 1\nb: 2\n"))

	bomb := strings.Repeat("&a ", 101) + strings.Repeat("*a ", 101)
	assert.Error(t, ValidateYAMLContent(bomb))

	assert.Error(t, ValidateYAMLContent(strings.Repeat("a", MaxYAMLBytes+1)))
}

func TestValidateConfigurationKey(t *testing.T) {
	require.NoError(t, ValidateConfigurationKey("db.host"))
	assert.Error(t, ValidateConfigurationKey(""))
	assert.Error(t, ValidateConfigurationKey(".db.host"))
	assert.Error(t, ValidateConfigurationKey("db..host"))
	assert.Error(t, ValidateConfigurationKey("db host"))
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "***", MaskValue("short"))
	assert.Equal(t, "hun***xyz", MaskValue("hunter2xxyz"))
}
