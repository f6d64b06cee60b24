// Package classifier implements the per-job file classification stage.
// Each worker owns one Classifier instance; all instances for a job share
// a single immutable snapshot of the enabled rule sets through a
// reference-counted registry. The snapshot loads when the first worker
// starts up and is discarded when the last worker shuts down.
package classifier

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/jamesainslie/triage/pkg/triage/findings"
	"github.com/jamesainslie/triage/pkg/triage/jobscope"
	"github.com/jamesainslie/triage/pkg/triage/logging"
	"github.com/jamesainslie/triage/pkg/triage/notify"
	"github.com/jamesainslie/triage/pkg/triage/ruledefs"
	"github.com/jamesainslie/triage/pkg/triage/rules"
	"github.com/jamesainslie/triage/pkg/triage/types"
)

// Result is the outcome of processing one file.
type Result int

const (
	// ResultOK means the file was processed. Individual recording
	// failures do not downgrade the result.
	ResultOK Result = iota

	// ResultError means the worker could not obtain the findings store
	// or has no snapshot for the job.
	ResultError
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrStartup indicates the classifier failed to start for its job, most
// commonly because the rule definitions could not be read. The job stage
// must not process files after a startup error.
var ErrStartup = errors.New("classifier startup failed")

// Settings are the per-job options controlling which rule sets apply.
type Settings struct {
	// EnabledSets names the rule sets enabled for the job. A nil slice
	// enables every defined set.
	EnabledSets []string
}

// SetEnabled reports whether the named rule set is enabled.
func (s Settings) SetEnabled(name string) bool {
	if s.EnabledSets == nil {
		return true
	}
	for _, n := range s.EnabledSets {
		if n == name {
			return true
		}
	}
	return false
}

// Snapshot is the immutable, ordered set of rule sets captured for a job.
type Snapshot = []*rules.RuleSet

// Classifier evaluates files against its job's rule set snapshot and
// records findings for matches. An instance belongs to a single worker
// and is not safe for concurrent use; concurrency safety across workers
// comes from the shared snapshot registry.
type Classifier struct {
	jobID     int64
	settings  Settings
	defs      ruledefs.Provider
	snapshots *jobscope.Registry[Snapshot]
	stores    findings.Provider
	notifier  *notify.Notifier

	started bool
}

// New creates a classifier for one worker of the given job.
func New(jobID int64, settings Settings, defs ruledefs.Provider, snapshots *jobscope.Registry[Snapshot], stores findings.Provider, notifier *notify.Notifier) *Classifier {
	return &Classifier{
		jobID:     jobID,
		settings:  settings,
		defs:      defs,
		snapshots: snapshots,
		stores:    stores,
		notifier:  notifier,
	}
}

// StartUp acquires the job's rule set snapshot. The first worker to start
// for the job captures the currently defined rule sets, filtered to those
// the job settings enable and sorted by name for a deterministic
// evaluation order; later workers reuse the same snapshot. A failure to
// read the rule definitions rolls the acquisition back and is returned
// wrapped in ErrStartup.
func (c *Classifier) StartUp() error {
	_, err := c.snapshots.Acquire(c.jobID, func() (Snapshot, error) {
		defined, err := c.defs.InterestingRuleSets()
		if err != nil {
			return nil, err
		}

		snap := make(Snapshot, 0, len(defined))
		for name, set := range defined {
			if c.settings.SetEnabled(name) {
				snap = append(snap, set)
			}
		}
		sort.Slice(snap, func(i, j int) bool {
			return snap[i].Name() < snap[j].Name()
		})
		return snap, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	c.started = true
	return nil
}

// Process evaluates one file against the job's snapshot and records a
// finding for every matched rule set. Recording errors are logged and do
// not stop evaluation of the remaining sets or change the result; only
// failure to obtain the findings store (or a missing snapshot) yields
// ResultError.
func (c *Classifier) Process(file types.FileRef) Result {
	logger := logging.Get("classifier")

	store, err := c.stores.Store()
	if err != nil {
		logger.Error("findings store unavailable", "job_id", c.jobID, "error", err)
		return ResultError
	}

	// Skip slack space files.
	if file.Category == types.CategorySlack {
		return ResultOK
	}

	snap, err := c.snapshots.Get(c.jobID)
	if err != nil {
		logger.Error("no rule set snapshot for job", "job_id", c.jobID, "error", err)
		return ResultError
	}

	for _, set := range snap {
		condition, ok := set.Match(file)
		if !ok {
			continue
		}
		c.record(logger, store, set, condition, file)
	}
	return ResultOK
}

// record inserts a deduplicated finding for one matched rule set and posts
// the user notification. Failures are logged per set.
func (c *Classifier) record(logger *log.Logger, store findings.Store, set *rules.RuleSet, condition string, file types.FileRef) {
	attrs := []findings.Attribute{
		{Name: findings.AttrSetName, Value: set.Name()},
		{Name: findings.AttrCondition, Value: condition},
	}

	exists, err := store.Exists(file.Path, findings.TypeRuleMatch, attrs)
	if err != nil {
		logger.Error("checking for existing finding", "set", set.Name(), "file", file.Path, "error", err)
		return
	}
	if exists {
		return
	}

	f, err := store.Insert(c.jobID, file.Path, findings.TypeRuleMatch, attrs)
	if err != nil {
		logger.Error("recording finding", "set", set.Name(), "file", file.Path, "error", err)
		return
	}

	// Index for search. Failure is reported but does not roll back the
	// insert and does not fail the file.
	if err := store.Index(f); err != nil {
		logger.Error("indexing finding for search", "finding", f.ID, "error", err)
		c.notifier.PostFailure(
			"Failed to index finding for search",
			fmt.Sprintf("Rule set: %s\nFile: %s", set.Name(), file.Path),
		)
	}

	c.notifier.Post(
		fmt.Sprintf("Interesting file match: %s (%s)", set.Name(), file.Name()),
		fmt.Sprintf("File: %s\nRule set: %s\nCondition: %s\nSize: %s", file.Path, set.Name(), condition, file.HumanSize()),
		file.Path,
		f,
	)
}

// ShutDown releases the job's snapshot. When this worker's release brings
// the reference count to zero the snapshot is discarded. Safe to call when
// StartUp never succeeded, and safe to call more than once.
func (c *Classifier) ShutDown() {
	if !c.started {
		return
	}
	c.started = false
	c.snapshots.Release(c.jobID)
}
