// Package findings provides the persistent store for classification
// findings: records of a file matching a named rule set, deduplicated by
// (file, finding type, attributes). The store is backed by Badger and
// keeps a secondary index by rule set name for search.
package findings

import (
	"sort"
	"strings"
	"time"
)

// Type identifies the kind of finding recorded.
type Type string

// TypeRuleMatch is a finding produced when a file satisfies a rule set's
// membership rule.
const TypeRuleMatch Type = "rule_match"

// Attribute names used by rule match findings.
const (
	// AttrSetName carries the name of the matched rule set.
	AttrSetName = "set_name"

	// AttrCondition carries the label of the satisfied rule.
	AttrCondition = "condition"
)

// Attribute is a name/value pair attached to a finding.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Finding is a recorded match between a file and a satisfied rule.
type Finding struct {
	// ID uniquely identifies the finding.
	ID string `json:"id"`

	// JobID is the job during which the finding was recorded.
	JobID int64 `json:"job_id"`

	// FilePath is the matched file.
	FilePath string `json:"file_path"`

	// Type is the kind of finding.
	Type Type `json:"type"`

	// Attributes describe the match (set name, satisfied condition).
	Attributes []Attribute `json:"attributes"`

	// RecordedAt is when the finding was inserted.
	RecordedAt time.Time `json:"recorded_at"`
}

// SetName returns the matched rule set name, empty if absent.
func (f *Finding) SetName() string {
	return f.attribute(AttrSetName)
}

// Condition returns the satisfied condition label, empty if absent.
func (f *Finding) Condition() string {
	return f.attribute(AttrCondition)
}

func (f *Finding) attribute(name string) string {
	for _, a := range f.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Store records findings. Insert is insert-if-absent on the dedup key
// (file path, type, attributes), so racing workers recording the same
// match produce a single finding. Exists remains available for callers
// that want to skip the insert entirely.
type Store interface {
	// Exists reports whether a finding with the same dedup key is stored.
	Exists(filePath string, t Type, attrs []Attribute) (bool, error)

	// Insert stores a finding unless one with the same dedup key exists,
	// in which case the stored finding is returned unchanged.
	Insert(jobID int64, filePath string, t Type, attrs []Attribute) (*Finding, error)

	// Index adds the finding to the search index. Index failure leaves
	// the inserted finding intact.
	Index(f *Finding) error

	// BySet returns indexed findings for the given rule set name.
	BySet(setName string) ([]*Finding, error)

	// All returns every stored finding.
	All() ([]*Finding, error)

	// Close releases the store.
	Close() error
}

// Provider hands out the findings store for the current processing run.
// Obtaining the handle can fail when the backing resources are gone, which
// the classification stage reports as a file-level error.
type Provider interface {
	Store() (Store, error)
}

// fixedProvider always returns the same store.
type fixedProvider struct {
	store Store
}

// FixedProvider returns a Provider that always hands out s.
func FixedProvider(s Store) Provider {
	return fixedProvider{store: s}
}

func (p fixedProvider) Store() (Store, error) {
	return p.store, nil
}

// canonicalAttrs returns the attributes sorted by name then value, for a
// stable dedup key regardless of the order the caller built them in.
func canonicalAttrs(attrs []Attribute) []Attribute {
	sorted := make([]Attribute, len(attrs))
	copy(sorted, attrs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Value < sorted[j].Value
	})
	return sorted
}

// attrsFingerprint renders canonical attributes as a single string for
// hashing into the dedup key.
func attrsFingerprint(attrs []Attribute) string {
	sorted := canonicalAttrs(attrs)
	parts := make([]string, 0, len(sorted))
	for _, a := range sorted {
		parts = append(parts, a.Name+"="+a.Value)
	}
	return strings.Join(parts, "\x1f")
}
