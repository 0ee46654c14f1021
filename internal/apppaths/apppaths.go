// Package apppaths resolves the four filesystem roots the framework needs
// (logging, system-wide application data, per-user data, scratch temp) from
// the host OS, the current privilege level, and a handful of environment
// overrides for container and development deployments. It is consulted
// before any other component starts.
package apppaths

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Options configures path resolution for one process.
type Options struct {
	// ShortName is used as the leaf directory/namespace for every resolved
	// path (e.g. "aegis").
	ShortName string
	// ForcedOS overrides runtime.GOOS for testing ("windows", "darwin",
	// "linux"). Empty uses the real host OS.
	ForcedOS string
	// ForcedDevMode routes every path under the current working directory
	// regardless of OS, matching local development layout.
	ForcedDevMode bool
	// AutoCreate creates directories that do not already exist.
	AutoCreate bool
	// CleanTemp removes any pre-existing temp root before re-creating it.
	CleanTemp bool
	// Spawned marks this as a worker child process; Tmp gets a WorkerID
	// subdirectory so sibling workers never collide.
	Spawned  bool
	WorkerID string
}

// Paths holds the four resolved roots for one process.
type Paths struct {
	Logging string
	AppData string
	UsrData string
	Tmp     string

	creationStatus map[string]bool
}

// Resolve computes the four roots for opts and, if AutoCreate is set,
// creates them — recording per-path success so callers can later check
// IsAvailable rather than fail outright. Directory creation failures are
// never fatal: the framework degrades the dependent feature instead.
func Resolve(opts Options) (*Paths, error) {
	osName := opts.ForcedOS
	if osName == "" {
		osName = runtime.GOOS
	}

	p := &Paths{creationStatus: make(map[string]bool)}
	p.Logging = resolveLogging(opts, osName)
	p.AppData = resolveAppData(opts, osName)
	p.UsrData = resolveUsrData(opts, osName)
	p.Tmp = resolveTmp(opts, osName)

	os.Setenv("dt_LOGGING_PATH", p.Logging)
	os.Setenv("dt_APP_DATA", p.AppData)
	os.Setenv("dt_USR_DATA", p.UsrData)
	os.Setenv("dt_TMP", p.Tmp)

	if opts.CleanTemp {
		if _, err := os.Stat(p.Tmp); err == nil {
			os.RemoveAll(p.Tmp)
		}
	}

	if opts.AutoCreate {
		p.safeMakeDirs("tmp", p.Tmp)
		p.safeMakeDirs("logging", p.Logging)
		p.safeMakeDirs("usr_data", p.UsrData)
		p.safeMakeDirs("app_data", p.AppData)
	}

	return p, nil
}

func (p *Paths) safeMakeDirs(name, path string) {
	err := os.MkdirAll(path, 0o700)
	p.creationStatus[name] = err == nil
}

// CleanTmp removes and recreates the resolved temp root. Safe to call again
// after Resolve, e.g. between worker job batches.
func (p *Paths) CleanTmp() error {
	if err := os.RemoveAll(p.Tmp); err != nil {
		return err
	}
	return os.MkdirAll(p.Tmp, 0o700)
}

// IsAvailable reports whether the named path ("tmp", "logging", "usr_data",
// "app_data") was successfully created. Returns nil if AutoCreate was never
// run for it.
func (p *Paths) IsAvailable(name string) *bool {
	v, ok := p.creationStatus[name]
	if !ok {
		return nil
	}
	return &v
}

func containerMode() bool {
	return os.Getenv("CONTAINER_MODE") != ""
}

// containerIdentifier picks the first populated identifier in the order
// CONTAINER_NAME, POD_NAME, HOSTNAME, then falls back to the kernel hostname.
func containerIdentifier() string {
	for _, env := range []string{"CONTAINER_NAME", "POD_NAME", "HOSTNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown-container"
}

func isRoot() bool {
	return os.Geteuid() == 0
}

func resolveLogging(opts Options, osName string) string {
	cwd, _ := os.Getwd()

	switch {
	case containerMode():
		return filepath.Join(cwd, "logs", containerIdentifier())
	case opts.ForcedDevMode:
		return filepath.Join(cwd, "logs")
	case osName == "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), opts.ShortName, "logs")
	case osName == "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", opts.ShortName)
	case osName == "linux":
		if isRoot() {
			return filepath.Join("/var/log", opts.ShortName)
		}
		return filepath.Join(xdgDir("XDG_STATE_HOME", ".local/state"), opts.ShortName, "log")
	default:
		return filepath.Join(cwd, "logs")
	}
}

func resolveAppData(opts Options, osName string) string {
	cwd, _ := os.Getwd()

	switch {
	case containerMode():
		return filepath.Join(cwd, "data")
	case opts.ForcedDevMode:
		return filepath.Join(cwd, "data", "app")
	case osName == "windows":
		return filepath.Join(os.Getenv("ALLUSERSPROFILE"), opts.ShortName)
	case osName == "darwin":
		return filepath.Join("/Library/Application Support", opts.ShortName)
	case osName == "linux":
		if isRoot() {
			return filepath.Join("/var/lib", opts.ShortName)
		}
		return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), opts.ShortName)
	default:
		return filepath.Join(cwd, "data", "app")
	}
}

func resolveUsrData(opts Options, osName string) string {
	cwd, _ := os.Getwd()

	switch {
	case containerMode():
		return filepath.Join(cwd, "data")
	case opts.ForcedDevMode:
		return filepath.Join(cwd, "data", "usr")
	case osName == "windows":
		return filepath.Join(os.Getenv("APPDATA"), opts.ShortName)
	case osName == "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", opts.ShortName)
	case osName == "linux":
		if isRoot() {
			return filepath.Join("/etc", opts.ShortName)
		}
		return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), opts.ShortName)
	default:
		return filepath.Join(cwd, "data", "usr")
	}
}

func resolveTmp(opts Options, osName string) string {
	cwd, _ := os.Getwd()
	var path string

	switch {
	case containerMode():
		path = filepath.Join(cwd, "temp", containerIdentifier()+"_"+strconv.Itoa(os.Getpid()))
	case opts.ForcedDevMode:
		path = filepath.Join(cwd, "temp")
	case osName == "windows":
		path = filepath.Join(os.Getenv("TEMP"), opts.ShortName)
	case osName == "darwin":
		tmp := os.Getenv("TMPDIR")
		if tmp == "" {
			tmp = os.TempDir()
		}
		path = filepath.Join(tmp, opts.ShortName)
	case osName == "linux":
		path = filepath.Join(os.TempDir(), opts.ShortName)
	default:
		path = filepath.Join(os.TempDir(), opts.ShortName)
	}

	if opts.Spawned {
		path = filepath.Join(path, opts.WorkerID)
	}
	return path
}

func xdgDir(env, fallbackRel string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, fallbackRel)
}
