package worker

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/internal/metrics"
)

// workerModeFlag, when present in os.Args, marks this process as a
// re-executed worker child rather than the normal application entrypoint.
// See child.go for the consumer side.
const workerModeFlag = "--aegis-worker"

// Coordinator tracks every job started in this process, by job name, the
// same role the original's module-level singleton MultiProcessingManager
// played.
type Coordinator struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	logPath string
	log     *logging.Logger
	metrics *metrics.Recorder
}

// NewCoordinator builds a Coordinator. logPath is passed down to every
// worker so it can resolve its own per-worker log directory the same way
// internal/apppaths.Resolve does for Options.Spawned.
func NewCoordinator(logPath string, log *logging.Logger) *Coordinator {
	return &Coordinator{jobs: make(map[string]*Job), logPath: logPath, log: log, metrics: metrics.NewRecorder()}
}

// Job returns a previously started job by name, or nil.
func (c *Coordinator) Job(jobName string) *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[jobName]
}

// NewJob creates (but does not start) a job of workerCount worker processes,
// each re-executing the current binary and running targetName's registered
// Target with extraArgs.
func (c *Coordinator) NewJob(jobName string, workerCount int, targetName string, extraArgs []string) *Job {
	job := &Job{
		JobID:       newID(),
		JobName:     jobName,
		WorkerCount: workerCount,
		TargetName:  targetName,
		ExtraArgs:   extraArgs,
		logPath:     c.logPath,
		log:         c.log,
		metrics:     c.metrics,
	}
	c.mu.Lock()
	c.jobs[jobName] = job
	c.mu.Unlock()
	return job
}

// Job is one named unit of work spread across WorkerCount worker processes.
type Job struct {
	JobID       string
	JobName     string
	WorkerCount int
	TargetName  string
	ExtraArgs   []string

	logPath string
	log     *logging.Logger
	metrics *metrics.Recorder
	workers []*worker
}

type worker struct {
	ID     string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

// Start launches every worker process. Each child's control channel is its
// stdin: the parent writes one newline-terminated command per line, read by
// a goroutine in the child rather than Python's poll-based busy loop.
func (j *Job) Start() error {
	for i := 0; i < j.WorkerCount; i++ {
		w, err := j.startWorker()
		if err != nil {
			j.Close()
			return fmt.Errorf("starting worker %d/%d for job %s: %w", i+1, j.WorkerCount, j.JobName, err)
		}
		j.workers = append(j.workers, w)
		j.log.Tagged(w.ID).Info("started for job %s (%s)", j.JobID, j.JobName)
	}
	j.metrics.RecordWorkerJobStarted()
	j.metrics.SetActiveWorkers(len(j.workers))
	return nil
}

func (j *Job) startWorker() (*worker, error) {
	workerID := newID()
	args := append([]string{
		workerModeFlag, j.JobID, workerID, j.JobName, j.TargetName,
	}, j.ExtraArgs...)

	cmd := exec.Command(selfPath(), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"AEGIS_WORKER_LOG_PATH="+j.logPath,
		"AEGIS_WORKER_ID="+workerID,
		"AEGIS_JOB_ID="+j.JobID,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &worker{ID: workerID, cmd: cmd, stdin: stdin}, nil
}

// Wait blocks until every worker process exits.
func (j *Job) Wait() error {
	var firstErr error
	for _, w := range j.workers {
		if err := w.cmd.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.log.Info("all workers for job %s (%s) ended", j.JobID, j.JobName)
	return firstErr
}

// Close sends CMD_CLOSE to every worker still running, matching the
// original's close() broadcasting over every control pipe.
func (j *Job) Close() {
	j.log.Info("sending close command to workers for job %s", j.JobID)
	for _, w := range j.workers {
		if w.closed {
			continue
		}
		fmt.Fprintln(w.stdin, cmdClose)
		w.stdin.Close()
		w.closed = true
	}
	j.metrics.SetActiveWorkers(0)
}

func selfPath() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return p
}
