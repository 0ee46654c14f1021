// Package secvalidate implements the structural input validation rules:
// secret keys, secret values, file paths, YAML payload size, and
// configuration keys.
package secvalidate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/aegis-run/aegis/internal/errors"
)

const (
	MaxSecretValueBytes = 64 * 1024
	MaxYAMLBytes        = 10 * 1024 * 1024
	MaxConfigKeyLen     = 500
	maxReferenceCount   = 100
)

var (
	secretKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,255}$`)
	configKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	pathTraversalLead = regexp.MustCompile(`^\.\.[\\/]`)
	pathTraversalTail = regexp.MustCompile(`[\\/]\.\.$`)

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
		"com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
		"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

func validationErr(field, reason string) error {
	return &apperrors.ValidationError{Field: field, Reason: reason}
}

// ValidateSecretKey checks a key against the secret-key grammar: 1-255
// chars of [A-Za-z0-9._/-], no ".." traversal, not a Windows reserved
// device name.
func ValidateSecretKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return validationErr("key", "secret key cannot be empty")
	}
	if len(key) > 255 {
		return validationErr("key", "secret key too long (max 255 chars)")
	}
	if strings.Contains(key, "..") {
		return validationErr("key", "path traversal detected in key")
	}
	if !secretKeyPattern.MatchString(key) {
		return validationErr("key", "invalid characters in secret key")
	}
	if windowsReservedNames[strings.ToLower(key)] {
		return validationErr("key", "reserved key name not allowed")
	}
	return nil
}

// ValidateSecretValue checks a value is non-empty and within the 64KiB
// limit when UTF-8 encoded.
func ValidateSecretValue(value string) error {
	if len(value) == 0 {
		return validationErr("value", "secret value cannot be empty")
	}
	if len(value) > MaxSecretValueBytes {
		return validationErr("value", fmt.Sprintf("secret value too large (max %d bytes)", MaxSecretValueBytes))
	}
	return nil
}

// ValidateFilePath resolves a path and, if allowedDirs is non-empty,
// requires it resolve under one of them. Rejects traversal segments.
func ValidateFilePath(path string, allowedDirs []string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", validationErr("file_path", "file path cannot be empty")
	}
	if pathTraversalLead.MatchString(path) || pathTraversalTail.MatchString(path) || strings.Contains(path, "../") || strings.Contains(path, "..\\") {
		return "", validationErr("file_path", "path traversal detected")
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", validationErr("file_path", "could not resolve path")
	}

	if len(allowedDirs) > 0 {
		ok := false
		for _, dir := range allowedDirs {
			absDir, err := filepath.Abs(dir)
			if err != nil {
				continue
			}
			if strings.HasPrefix(resolved, absDir) {
				ok = true
				break
			}
		}
		if !ok {
			return "", validationErr("file_path", "path not in allowed directories")
		}
	}

	return resolved, nil
}

// ValidateYAMLContent enforces a size ceiling and a crude billion-laughs
// guard based on '&' (anchor) and '*' (alias) counts.
func ValidateYAMLContent(content string) error {
	if len(content) > MaxYAMLBytes {
		return validationErr("yaml_content", fmt.Sprintf("YAML content too large (max %d bytes)", MaxYAMLBytes))
	}
	if strings.Count(content, "&") > maxReferenceCount || strings.Count(content, "*") > maxReferenceCount {
		return validationErr("yaml_content", "excessive YAML references detected")
	}
	return nil
}

// ValidateConfigurationKey checks a dotted configuration key:
// [A-Za-z0-9._-]+, <=500 chars, no leading/trailing/double dots.
func ValidateConfigurationKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return validationErr("config_key", "configuration key cannot be empty")
	}
	if len(key) > MaxConfigKeyLen {
		return validationErr("config_key", "configuration key too long")
	}
	if !configKeyPattern.MatchString(key) {
		return validationErr("config_key", "invalid characters in configuration key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return validationErr("config_key", "invalid dot usage in configuration key")
	}
	return nil
}

// MaskValue shows the first and last three characters of a value for safe
// logging, masking everything in between.
func MaskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}
