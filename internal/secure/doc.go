// Package secure wraps memguard to keep keystore passphrases encrypted at
// rest in memory between uses rather than sitting as a plain string on the
// heap.
//
// # Usage
//
//	pass := secure.NewPassphrase(userSuppliedPassword)
//	defer pass.Destroy()
//
//	err := pass.Use(func(plaintext string) error {
//	    return deriveKeyAndOpen(plaintext)
//	})
//
// # Platform behaviour
//
// memguard's mlock call behaves differently per platform (Linux needs
// RLIMIT_MEMLOCK, macOS works unmodified, Windows uses VirtualLock). If
// mlock is unavailable the enclave still encrypts the data at rest; it
// just loses the swap-protection guarantee. This package does not protect
// against an attacker with root on the running host, or hardware-level
// attacks (cold boot, DMA, Spectre/Meltdown).
package secure
