package secure

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassphraseUseReturnsPlaintext(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("super-secret-password")
	defer p.Destroy()

	var got string
	err := p.Use(func(plaintext string) error {
		got = plaintext
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "super-secret-password", got)
}

func TestPassphraseUseRepeatable(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("repeat-me")
	defer p.Destroy()

	for i := 0; i < 3; i++ {
		var got string
		err := p.Use(func(plaintext string) error {
			got = plaintext
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "repeat-me", got)
	}
}

func TestPassphraseUsePropagatesCallbackError(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("whatever")
	defer p.Destroy()

	wantErr := assert.AnError
	err := p.Use(func(plaintext string) error { return wantErr })
	assert.Equal(t, wantErr, err)
}

func TestPassphraseDestroyIsIdempotent(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("destroy-me")
	p.Destroy()
	p.Destroy() // must not panic
}

func TestPassphraseUseAfterDestroyYieldsEmptyString(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("gone-soon")
	p.Destroy()

	var got string
	err := p.Use(func(plaintext string) error {
		got = plaintext
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestPassphraseEmptyString(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("")
	defer p.Destroy()

	var got string
	err := p.Use(func(plaintext string) error {
		got = plaintext
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestPassphraseConcurrentUse(t *testing.T) {
	t.Parallel()

	p := NewPassphrase("concurrent-secret")
	defer p.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Use(func(plaintext string) error {
				assert.Equal(t, "concurrent-secret", plaintext)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func BenchmarkPassphraseUse(b *testing.B) {
	p := NewPassphrase("benchmark-secret-data")
	defer p.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Use(func(string) error { return nil })
	}
}
