package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// cmdClose is the only control command the original ProcessStateCommands
// enum defines (CMD_CLOSE).
const cmdClose = "CMD_CLOSE"

// RunIfWorker inspects os.Args for the hidden re-exec marker. If this
// process was spawned by Job.Start, it runs the named target to
// completion (or until CMD_CLOSE arrives on stdin) and returns true — the
// caller must os.Exit with the returned code rather than continuing into
// its normal entrypoint. If this process is not a worker, it returns false
// immediately and the caller proceeds as normal.
func RunIfWorker() (ran bool, exitCode int) {
	args := os.Args[1:]
	if len(args) < 5 || args[0] != workerModeFlag {
		return false, 0
	}

	jobID, workerID, _, targetName := args[1], args[2], args[3], args[4]
	extraArgs := args[5:]

	target, err := lookup(targetName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return true, 1
	}

	os.Setenv("AEGIS_WORKER_ID", workerID)
	os.Setenv("AEGIS_JOB_ID", jobID)

	fmt.Printf("Process ID = %d\n", os.Getpid())
	fmt.Printf("worker_id %d = %s\n", os.Getpid(), workerID)
	fmt.Printf("job_id %d = %s\n", os.Getpid(), jobID)

	ctx, cancel := context.WithCancel(context.Background())
	go watchControlChannel(os.Stdin, cancel)

	if err := target(ctx, workerID, jobID, extraArgs); err != nil {
		fmt.Fprintln(os.Stderr, "worker target error:", err)
		return true, 1
	}
	return true, 0
}

// watchControlChannel replaces Python's busy-poll state_check thread
// (`while True: if pipe.poll()`) with a blocking read loop; the only
// recognised line is CMD_CLOSE.
func watchControlChannel(r *os.File, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if scanner.Text() == cmdClose {
			cancel()
			return
		}
	}
}
