package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/aegis-run/aegis/internal/logging"
)

// Watcher watches one reader's directory for changes to config.yaml,
// debouncing modify events by content hash so a touch with no byte change
// does not trigger a reload.
type Watcher struct {
	reader *Reader
	log    *logging.Logger
	fsw    *fsnotify.Watcher

	lastHash string
}

// StartWatcher begins watching r's directory in a background goroutine. The
// returned Watcher's Close stops it. Watching a directory that does not yet
// exist is a no-op — the framework runs fine without live reload there.
func StartWatcher(r *Reader, log *logging.Logger) (*Watcher, error) {
	if _, err := os.Stat(r.Dir); err != nil {
		return nil, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(r.Dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{reader: r, log: log, fsw: fsw, lastHash: hashFile(r.path())}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	watchPath := filepath.Join(w.reader.Dir, ConfigFileName)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != watchPath {
				continue
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("settings watcher error for %s: %v", w.reader.Dir, err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.log.Warn("config watch file deleted: %s", event.Name)
		w.reader.Clear()
		w.lastHash = ""
	case event.Op&fsnotify.Create != 0:
		w.log.Warn("config watch file created: %s", event.Name)
		w.lastHash = hashFile(event.Name)
		w.reader.Load()
	case event.Op&fsnotify.Write != 0:
		newHash := hashFile(event.Name)
		if newHash != w.lastHash {
			w.log.Warn("config watch file changed: %s", event.Name)
			w.lastHash = newHash
			w.reader.Load()
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
