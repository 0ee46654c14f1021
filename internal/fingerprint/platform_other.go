//go:build !darwin && !windows

package fingerprint

func platformUUIDDarwin() string  { return "" }
func platformUUIDWindows() string { return "" }
