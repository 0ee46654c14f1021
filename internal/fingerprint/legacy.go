package fingerprint

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
)

var nonLetters = regexp.MustCompile(`[^a-zA-Z]+`)

// DeriveLegacyV2Password reproduces the weak v2 keystore password
// derivation, kept only so a one-shot migration can decrypt a pre-existing
// v2 file before re-encrypting it under the v3 format. Never use this for
// new keystores.
func DeriveLegacyV2Password(storePath string) (string, error) {
	base, err := legacyMachineID()
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", fmt.Errorf("failed to determine unique machine ID for legacy v2 keystore")
	}

	base += storePath
	key := nonLetters.ReplaceAllString(base, "")
	if key == "" {
		return "", fmt.Errorf("legacy v2 key derivation produced an empty key")
	}

	xored := xorCycle(base, key)
	std := base64.StdEncoding.EncodeToString([]byte(xored))
	if len(std) > 32 {
		std = std[:32]
	}
	return base64.URLEncoding.EncodeToString([]byte(std)), nil
}

// xorCycle XORs each rune of s against the corresponding rune of key,
// cycling key as needed, matching Python's itertools.cycle behaviour.
func xorCycle(s, key string) string {
	sRunes := []rune(s)
	keyRunes := []rune(key)
	out := make([]rune, len(sRunes))
	for i, r := range sRunes {
		k := keyRunes[i%len(keyRunes)]
		out[i] = r ^ k
	}
	return string(out)
}

func legacyMachineID() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return platformUUIDDarwin(), nil
	case "windows":
		return platformUUIDWindows(), nil
	case "linux":
		for _, path := range []string{"/var/lib/dbus/machine-id", "/etc/machine-id"} {
			if data, err := os.ReadFile(path); err == nil {
				if id := strings.TrimSpace(string(data)); id != "" {
					return id, nil
				}
			}
		}
		return "", fmt.Errorf("failed to determine unique machine ID for legacy v2 keystore")
	case "openbsd", "freebsd":
		if data, err := os.ReadFile("/etc/hostid"); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
		return "", fmt.Errorf("failed to determine unique machine ID for legacy v2 keystore")
	default:
		return "", fmt.Errorf("legacy v2 keystore migration is not supported on %s", runtime.GOOS)
	}
}
