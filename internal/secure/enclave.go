package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Passphrase holds a keystore master password (or any other short-lived
// secret string) encrypted at rest in memory between uses, so a decrypted
// value never sits in the Go heap as a plain string for longer than one
// call needs it.
type Passphrase struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex

	destroyed bool
}

// NewPassphrase seals s into a protected enclave. The caller's copy of s
// is left untouched — Go strings are immutable, so the original cannot be
// zeroed; NewPassphrase exists to keep every later copy out of the
// enclave's caller's hands, not to scrub the one the runtime already holds.
func NewPassphrase(s string) *Passphrase {
	return &Passphrase{enclave: memguard.NewEnclave([]byte(s))}
}

// Use decrypts the passphrase, hands the plaintext to fn, and wipes the
// decrypted copy before returning, regardless of whether fn errors.
func (p *Passphrase) Use(fn func(plaintext string) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.destroyed || p.enclave == nil {
		return fn("")
	}

	locked, err := p.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(string(locked.Bytes()))
}

// Destroy is idempotent; after Destroy, Use invokes fn with an empty
// string rather than erroring, matching the original enclave's
// empty-buffer-after-destroy behaviour.
func (p *Passphrase) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	p.enclave = nil
	p.destroyed = true
}
