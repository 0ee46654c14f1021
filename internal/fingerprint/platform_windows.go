//go:build windows

package fingerprint

import (
	"os/exec"
	"strings"
)

// platformUUIDWindows reads the system UUID via PowerShell, matching the
// original Win32_ComputerSystemProduct lookup.
func platformUUIDWindows() string {
	out, err := exec.Command("powershell", "-Command",
		"Get-CimInstance -Class Win32_ComputerSystemProduct | Select-Object -ExpandProperty UUID").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func platformUUIDDarwin() string { return "" }
