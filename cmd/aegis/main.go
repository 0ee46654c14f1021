// Command aegis is a thin sample entrypoint demonstrating how a host
// application bootstraps the framework. It is not a deliverable CLI
// surface; most applications embed the aegis package directly instead of
// shelling out to this binary.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegis-run/aegis"
	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/internal/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func init() {
	worker.Register("sample-echo", sampleEchoTarget)
}

// sampleEchoTarget demonstrates the spec's worker re-init pattern: on entry
// a worker re-resolves its own Paths with Spawned/WorkerID set and builds a
// fresh Runtime scoped to that worker, the same way its parent built one
// scoped to the main process.
func sampleEchoTarget(ctx context.Context, workerID, jobID string, args []string) error {
	logger := logging.New(false, false)
	rt, err := aegis.New(&aegis.Definition{
		ShortName: "aegis-sample",
		FullName:  "Aegis Sample Application",
		Spawned:   true,
		WorkerID:  workerID,
	}, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("worker %s running job %s with args %v, tmp=%s", workerID, jobID, args, rt.Paths.Tmp)
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func main() {
	// A re-exec'd worker child never reaches the cobra command tree: it
	// is intercepted and dispatched here before flag parsing begins.
	if ran, code := worker.RunIfWorker(); ran {
		os.Exit(code)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		shortName string
		debug     bool
		noColor   bool
	)

	var rt *aegis.Runtime

	rootCmd := &cobra.Command{
		Use:     "aegis",
		Short:   "sample host application for the aegis runtime framework",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(debug, noColor)
			built, err := aegis.New(&aegis.Definition{
				ShortName:   shortName,
				FullName:    "Aegis Sample Application",
				Version:     version,
				Description: "demonstrates aegis bootstrap",
				AutoCreate:  true,
			}, logger)
			if err != nil {
				return err
			}
			rt = built
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&shortName, "name", "aegis-sample", "application short name")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newGetCommand(&rt))
	rootCmd.AddCommand(newPathsCommand(&rt))
	rootCmd.AddCommand(newRunJobCommand(&rt))

	return rootCmd.Execute()
}

func newGetCommand(rt **aegis.Runtime) *cobra.Command {
	var storeName string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "resolve a secret through the local/cloud store chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := (*rt).Secrets.GetSecret(context.Background(), args[0], "", storeName)
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeName, "store", "", "query only this store")
	return cmd
}

func newRunJobCommand(rt **aegis.Runtime) *cobra.Command {
	var workerCount int
	cmd := &cobra.Command{
		Use:   "run-job",
		Short: "spawn the sample-echo worker target across workerCount re-exec'd processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			job := (*rt).Workers.NewJob("sample-job", workerCount, "sample-echo", args)
			if err := job.Start(); err != nil {
				return err
			}
			return job.Wait()
		},
	}
	cmd.Flags().IntVar(&workerCount, "workers", 2, "number of worker processes to spawn")
	return cmd
}

func newPathsCommand(rt **aegis.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "print the four resolved filesystem roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := (*rt).Paths
			fmt.Printf("logging: %s\napp-data: %s\nusr-data: %s\ntmp:      %s\n",
				p.Logging, p.AppData, p.UsrData, p.Tmp)
			return nil
		},
	}
}
