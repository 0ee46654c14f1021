// Package fingerprint derives deterministic keystore passwords from an
// application identity, a store path, and a best-effort machine
// fingerprint. It implements both the current (v3) derivation and the
// weak legacy (v2) derivation kept only to decrypt pre-existing files
// during migration.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	v3Iterations = 100000
	v3KeyLen     = 32
)

// Generator derives passwords for one application identity. Its machine
// fingerprint is gathered once and cached.
type Generator struct {
	AppName string

	once        sync.Once
	fingerprint string
}

// ContainerPassword checks the two environment overrides the container
// deployment mode uses to share one keystore across replicas. The second
// return value is false if neither is set.
func ContainerPassword() (string, bool) {
	if v := os.Getenv("KEYSTORE_PASSWORD"); v != "" {
		return v, true
	}
	if v := os.Getenv("SECRETS_STORE_PASSWORD"); v != "" {
		return v, true
	}
	return "", false
}

// DerivePassword implements the ordered v3 selection rule:
//  1. container mode with an env override: used verbatim, no fingerprinting.
//  2. a user-provided password: strengthened via PBKDF2 over an
//     installation-specific salt.
//  3. no password: PBKDF2 over the machine fingerprint with the
//     application-specific salt.
func (g *Generator) DerivePassword(storePath, userPassword string, containerMode bool) (string, error) {
	if containerMode {
		if pw, ok := ContainerPassword(); ok {
			return pw, nil
		}
	}

	fp, err := g.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("collect machine fingerprint: %w", err)
	}

	if userPassword != "" {
		salt := installationSalt(g.AppName)
		seed := fmt.Sprintf("%s:%s:%s", userPassword, fp, g.AppName)
		derived := pbkdf2.Key([]byte(seed), salt, v3Iterations, v3KeyLen, sha256.New)
		return base64.StdEncoding.EncodeToString(derived), nil
	}

	salt := applicationSalt(g.AppName)
	seed := fmt.Sprintf("%s:%s:%s", g.AppName, storePath, fp)
	derived := pbkdf2.Key([]byte(seed), salt, v3Iterations, v3KeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(derived), nil
}

// applicationSalt matches the original on-disk format's 16-byte salt:
// SHA-256("dtPyAppFramework-v3-{app_name}")[:16].
func applicationSalt(appName string) []byte {
	sum := sha256.Sum256([]byte("dtPyAppFramework-v3-" + appName))
	return sum[:16]
}

// installationSalt derives a salt from node name, a coarse hardware
// identifier, and architecture so the user-password-strengthening path
// does not reuse the no-password salt.
func installationSalt(appName string) []byte {
	hostname, _ := os.Hostname()
	seed := fmt.Sprintf("%s|%s|%s|%s", hostname, hardwareNodeID(), runtime.GOARCH, appName)
	sum := sha256.Sum256([]byte(seed))
	return sum[:16]
}

// Fingerprint returns the cached best-effort machine fingerprint,
// collecting it on first use.
func (g *Generator) Fingerprint() (string, error) {
	var collectErr error
	g.once.Do(func() {
		parts := collectFingerprintParts()
		if len(parts) == 0 {
			collectErr = fmt.Errorf("unable to collect any machine fingerprint component")
			return
		}
		g.fingerprint = strings.Join(parts, "|")
	})
	if g.fingerprint == "" && collectErr != nil {
		return "", collectErr
	}
	return g.fingerprint, nil
}

func collectFingerprintParts() []string {
	var parts []string

	parts = append(parts, fmt.Sprintf("os:%s", runtime.GOOS))
	parts = append(parts, fmt.Sprintf("arch:%s", runtime.GOARCH))

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		parts = append(parts, "hostname:"+hostname)
	}

	if iface := defaultInterfaceMAC(); iface != "" {
		parts = append(parts, "mac:"+iface)
	}

	if id := hardwareNodeID(); id != "" {
		parts = append(parts, "hw_id:"+id)
	}

	parts = append(parts, "env:"+environmentTag())

	return parts
}

// defaultInterfaceMAC returns the hardware address of the first non-loopback
// interface whose non-empty MAC reads the same in two successive interface
// listings. Errors are swallowed: the fingerprint degrades rather than fails.
func defaultInterfaceMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	again, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		mac := iface.HardwareAddr.String()
		// Re-derive once more and compare; a MAC that differs between two
		// reads in the same process indicates a virtualised or randomised
		// adapter rather than a stable hardware identity.
		for _, check := range again {
			if check.Name == iface.Name && check.HardwareAddr.String() == mac {
				return mac
			}
		}
	}
	return ""
}

// environmentTag makes a coarse guess at the deployment environment so the
// fingerprint distinguishes container instances from bare-metal/VM hosts.
func environmentTag() string {
	if os.Getenv("CONTAINER_MODE") != "" {
		return "container"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "container"
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		if strings.Contains(string(data), "docker") || strings.Contains(string(data), "kubepods") {
			return "container"
		}
	}
	return "bare_metal_or_vm"
}

// hardwareNodeID gathers a best-effort, OS-specific machine identifier.
// Every branch swallows its own error: a missing identifier degrades the
// fingerprint, it never aborts collection.
func hardwareNodeID() string {
	switch runtime.GOOS {
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
			if data, err := os.ReadFile(path); err == nil {
				if id := strings.TrimSpace(string(data)); id != "" {
					return id
				}
			}
		}
	case "darwin":
		if id := platformUUIDDarwin(); id != "" {
			return id
		}
	case "windows":
		if id := platformUUIDWindows(); id != "" {
			return id
		}
	}
	return ""
}
