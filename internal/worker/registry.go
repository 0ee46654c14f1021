// Package worker re-architects the original multiprocessing job/worker
// facility for Go: Python spawns worker processes that run a target
// function directly via fork/spawn semantics, which Go has no equivalent
// of. Instead, a worker subprocess is the same static binary re-executed
// with a hidden flag; at startup it looks up its target function by name in
// a process-wide registry built by the embedding application's own init
// code, then runs it. Every worker process therefore carries the full
// binary, including every registered target, the same way the Python
// target function was always importable in the forked/spawned child.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// Target is a function a worker process can run. ctx is cancelled when the
// coordinator sends CMD_CLOSE. workerID and jobID identify this worker
// process and the job it belongs to, the same IDs the parent assigned in
// Coordinator.NewJob/Job.startWorker — a target uses them to recompute its
// own apppaths.Options{Spawned: true, WorkerID: workerID} and re-instantiate
// the framework as that worker.
type Target func(ctx context.Context, workerID, jobID string, args []string) error

var (
	registryMu sync.RWMutex
	registry   = map[string]Target{}
)

// Register makes fn runnable as a worker target under name. Call from an
// init function so every re-exec of the binary sees the same registry,
// regardless of which code path triggered the re-exec.
func Register(name string, fn Target) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

func lookup(name string) (Target, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("worker: no target registered under name %q", name)
	}
	return fn, nil
}
