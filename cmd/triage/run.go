package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/triage/pkg/triage/classifier"
	"github.com/jamesainslie/triage/pkg/triage/findings"
	"github.com/jamesainslie/triage/pkg/triage/jobscope"
	"github.com/jamesainslie/triage/pkg/triage/logging"
	"github.com/jamesainslie/triage/pkg/triage/notify"
	"github.com/jamesainslie/triage/pkg/triage/output"
	"github.com/jamesainslie/triage/pkg/triage/pipeline"
	"github.com/jamesainslie/triage/pkg/triage/ruledefs"
	"github.com/jamesainslie/triage/pkg/triage/types"
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Classify all files under a directory",
	Long: `Run enumerates the files under the given directory, evaluates each one
against the enabled rule sets, and records a deduplicated finding for
every match.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJob,
}

func init() {
	runCmd.Flags().String("format", "pretty", "report format (pretty, plain)")
	rootCmd.AddCommand(runCmd)
}

// runJob executes one classification job over a directory tree.
func runJob(cmd *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()
	logger := logging.Get("cli")

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	formatter, err := output.New(cmd.Flag("format").Value.String())
	if err != nil {
		return err
	}

	store, err := findings.Open(viper.GetString("data_dir"))
	if err != nil {
		return fmt.Errorf("opening findings store: %w", err)
	}
	defer func() { _ = store.Close() }()

	manager := ruledefs.NewManager(viper.GetString("rules_path"))
	if viper.GetBool("watch_rules") {
		watcher, werr := ruledefs.NewWatcher(manager)
		if werr != nil {
			logger.Warn("watching rule definitions failed", "error", werr)
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	notifier := notify.New()
	defer notifier.Close()

	files, err := enumerate(root)
	if err != nil {
		return fmt.Errorf("enumerating %s: %w", root, err)
	}
	logger.Info("enumerated files", "root", root, "count", len(files))

	job := pipeline.NewJob(newJobID(), viper.GetInt("workers"), pipeline.Deps{
		Definitions: manager,
		Snapshots:   jobscope.New[classifier.Snapshot](),
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
		Settings:    classifier.Settings{EnabledSets: enabledSets()},
	})

	// Collect match notifications while the job runs.
	sub := notifier.Subscribe()
	var recorded []*findings.Finding
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for msg := range sub.Messages {
			if msg.Finding != nil {
				recorded = append(recorded, msg.Finding)
			}
		}
	}()

	stats, err := job.Run(cmd.Context(), files)
	notifier.Unsubscribe(sub.ID)
	collectWg.Wait()
	if err != nil {
		return err
	}

	report := &output.Report{
		JobID:          job.JobID(),
		Root:           root,
		FilesProcessed: stats.FilesProcessed,
		FileErrors:     stats.FileErrors,
		Findings:       recorded,
		Elapsed:        stats.Elapsed,
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// enumerate walks the tree under root and returns a FileRef per regular
// file. fastwalk runs callbacks concurrently, so collection is locked.
func enumerate(root string) ([]types.FileRef, error) {
	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}

	var mu sync.Mutex
	var files []types.FileRef

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip entries with errors.
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		mu.Lock()
		files = append(files, types.FileRef{
			Path:     path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Category: types.CategoryRegular,
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// enabledSets returns the configured enabled set names, nil meaning all.
func enabledSets() []string {
	sets := viper.GetStringSlice("enabled_sets")
	if len(sets) == 0 {
		return nil
	}
	return sets
}

// newJobID derives a job id for a CLI run. One process runs one job at a
// time, so wall-clock nanoseconds are unique enough.
func newJobID() int64 {
	return time.Now().UnixNano()
}
