// Package work provides the unit-of-work abstraction for the triage
// pipeline: an immutable binding of a schedulable task to its owning job
// and, once dispatched, to the worker that executed it. Concrete unit
// kinds differ only in the payload they hand back to the pipeline, not in
// scheduling semantics.
package work

import (
	"errors"
	"sync"

	"github.com/jamesainslie/triage/pkg/triage/types"
)

// ErrAlreadyExecuted is returned when a unit is executed a second time.
// The scheduler guarantees each unit runs on exactly one worker; this
// error surfaces violations of that contract.
var ErrAlreadyExecuted = errors.New("work: unit already executed")

// Pipeline is the owning job's execution entry point. The pipeline is used
// exclusively, but not owned, by the units bound to it.
type Pipeline interface {
	// JobID returns the stable identifier of the job.
	JobID() int64

	// Execute runs the unit's payload through the job's processing stages.
	Execute(u Unit)
}

// Unit is a schedulable piece of work bound to a job.
type Unit interface {
	// Pipeline returns the owning job's pipeline.
	Pipeline() Pipeline

	// Worker returns the id of the worker that executed the unit.
	// ok is false until the unit has been dispatched.
	Worker() (id int64, ok bool)

	// Execute binds the worker identity to the unit and delegates to the
	// owning pipeline, passing the unit as the item of work. It returns
	// ErrAlreadyExecuted if the unit was dispatched before.
	Execute(workerID int64) error
}

// base carries the job binding and the once-only worker assignment shared
// by all unit kinds.
type base struct {
	pipeline Pipeline

	mu       sync.Mutex
	workerID int64
	executed bool
}

// Pipeline returns the owning job's pipeline.
func (b *base) Pipeline() Pipeline {
	return b.pipeline
}

// Worker returns the assigned worker id, ok false before dispatch.
func (b *base) Worker() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.workerID, b.executed
}

// bind records the worker id. It fails on a second call.
func (b *base) bind(workerID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.executed {
		return ErrAlreadyExecuted
	}
	b.workerID = workerID
	b.executed = true
	return nil
}

// FileUnit is a unit of work over a single file.
type FileUnit struct {
	base
	file types.FileRef
}

// NewFileUnit creates a file unit bound to the given pipeline.
func NewFileUnit(p Pipeline, file types.FileRef) *FileUnit {
	return &FileUnit{
		base: base{pipeline: p},
		file: file,
	}
}

// File returns the file the unit carries.
func (u *FileUnit) File() types.FileRef {
	return u.file
}

// Execute binds the worker and hands the unit to the pipeline.
func (u *FileUnit) Execute(workerID int64) error {
	if err := u.bind(workerID); err != nil {
		return err
	}
	u.pipeline.Execute(u)
	return nil
}

// SourceUnit is a unit of work over a whole data source root.
type SourceUnit struct {
	base
	root string
}

// NewSourceUnit creates a source unit bound to the given pipeline.
func NewSourceUnit(p Pipeline, root string) *SourceUnit {
	return &SourceUnit{
		base: base{pipeline: p},
		root: root,
	}
}

// Root returns the data source root the unit carries.
func (u *SourceUnit) Root() string {
	return u.root
}

// Execute binds the worker and hands the unit to the pipeline.
func (u *SourceUnit) Execute(workerID int64) error {
	if err := u.bind(workerID); err != nil {
		return err
	}
	u.pipeline.Execute(u)
	return nil
}

// Interface checks.
var (
	_ Unit = (*FileUnit)(nil)
	_ Unit = (*SourceUnit)(nil)
)
