package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/triage/pkg/triage/types"
)

// ErrNoLabel indicates that a rule was constructed without a label.
var ErrNoLabel = errors.New("rule must have a label")

// Rule is a single file-membership condition inside a rule set. A rule
// matches when every criterion that was set is satisfied; unset criteria
// are ignored. The label identifies the satisfied condition in findings.
type Rule struct {
	label      string
	nameGlob   glob.Glob
	namePat    string
	pathGlob   glob.Glob
	pathPat    string
	extensions []string
	minSize    int64
}

// RuleOption is a functional option for configuring a Rule.
type RuleOption func(*Rule) error

// WithNameGlob matches the file's base name against a glob pattern.
func WithNameGlob(pattern string) RuleOption {
	return func(r *Rule) error {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compiling name glob %q: %w", pattern, err)
		}
		r.nameGlob = g
		r.namePat = pattern
		return nil
	}
}

// WithPathGlob matches the file's full path against a glob pattern.
// The path separator is treated as a glob separator, so "*" does not
// cross directory boundaries.
func WithPathGlob(pattern string) RuleOption {
	return func(r *Rule) error {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("compiling path glob %q: %w", pattern, err)
		}
		r.pathGlob = g
		r.pathPat = pattern
		return nil
	}
}

// WithExtensions matches files whose extension is one of the given set.
// Extensions are normalized: lowercase and prefixed with "." if missing.
func WithExtensions(extensions ...string) RuleOption {
	return func(r *Rule) error {
		normalized := make([]string, 0, len(extensions))
		for _, ext := range extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized = append(normalized, ext)
		}
		r.extensions = append(r.extensions, normalized...)
		return nil
	}
}

// WithTypeGroup expands a type group name to its extensions and matches
// against them. Unknown group names are an error.
func WithTypeGroup(group string) RuleOption {
	return func(r *Rule) error {
		exts, ok := TypeGroups[group]
		if !ok {
			return fmt.Errorf("unknown type group %q", group)
		}
		r.extensions = append(r.extensions, exts...)
		return nil
	}
}

// WithMinSize matches files of at least minSize bytes.
func WithMinSize(minSize int64) RuleOption {
	return func(r *Rule) error {
		if minSize < 0 {
			minSize = 0
		}
		r.minSize = minSize
		return nil
	}
}

// NewRule creates a new Rule with the given label and criteria.
func NewRule(label string, opts ...RuleOption) (*Rule, error) {
	if label == "" {
		return nil, ErrNoLabel
	}

	r := &Rule{label: label}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Label returns the rule's condition label.
func (r *Rule) Label() string {
	return r.label
}

// Matches returns true if the file satisfies every criterion set on the rule.
func (r *Rule) Matches(f types.FileRef) bool {
	if r.nameGlob != nil && !r.nameGlob.Match(f.Name()) {
		return false
	}
	if r.pathGlob != nil && !r.pathGlob.Match(f.Path) {
		return false
	}
	if len(r.extensions) > 0 && !r.matchExtension(f) {
		return false
	}
	if r.minSize > 0 && f.Size < r.minSize {
		return false
	}
	return true
}

// matchExtension checks if the file has one of the rule's extensions.
func (r *Rule) matchExtension(f types.FileRef) bool {
	ext := f.Ext()
	for _, e := range r.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// RuleSet is a named, ordered collection of rules. Evaluation order is the
// construction order, so match output for a file is reproducible.
type RuleSet struct {
	name  string
	rules []*Rule
}

// ErrNoName indicates that a rule set was constructed without a name.
var ErrNoName = errors.New("rule set must have a name")

// NewRuleSet creates a rule set with the given name and ordered rules.
func NewRuleSet(name string, ruleList ...*Rule) (*RuleSet, error) {
	if name == "" {
		return nil, ErrNoName
	}

	rs := &RuleSet{
		name:  name,
		rules: make([]*Rule, len(ruleList)),
	}
	copy(rs.rules, ruleList)
	return rs, nil
}

// Name returns the rule set's name.
func (s *RuleSet) Name() string {
	return s.name
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Match evaluates the file against the set's rules in order and returns the
// label of the first satisfied rule. ok is false when no rule matches.
func (s *RuleSet) Match(f types.FileRef) (label string, ok bool) {
	for _, r := range s.rules {
		if r.Matches(f) {
			return r.label, true
		}
	}
	return "", false
}
