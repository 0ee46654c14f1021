package secure

import (
	"crypto/rand"
	"fmt"
	"os"
)

const shredChunkSize = 64 * 1024

// ShredFile overwrites a file's contents with random data for the given
// number of passes, fsyncing after each pass, then unlinks it. A missing
// file is treated as already-shredded and returns nil.
func ShredFile(path string, passes int) error {
	if passes < 1 {
		passes = 3
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s for shredding: %w", path, err)
	}
	defer f.Close()

	size := info.Size()
	buf := make([]byte, shredChunkSize)

	for pass := 0; pass < passes; pass++ {
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("seek during shred pass %d: %w", pass, err)
		}
		remaining := size
		for remaining > 0 {
			n := int64(shredChunkSize)
			if remaining < n {
				n = remaining
			}
			if _, err := rand.Read(buf[:n]); err != nil {
				return fmt.Errorf("generate random data: %w", err)
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write during shred pass %d: %w", pass, err)
			}
			remaining -= n
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("fsync during shred pass %d: %w", pass, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close before unlink: %w", err)
	}
	return os.Remove(path)
}
