// Package ruledefs manages rule set definitions: the externally owned,
// versioned collection of named rule sets that classification jobs draw
// their snapshots from. Definitions load from a YAML file and can be
// reloaded while jobs are running; snapshots captured at job start are
// unaffected, so rule editing never needs to lock out active jobs.
package ruledefs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/jamesainslie/triage/pkg/triage/rules"
	"github.com/jamesainslie/triage/pkg/triage/types"
)

// ErrUnreadable indicates the definitions file could not be read or parsed.
var ErrUnreadable = errors.New("rule definitions unreadable")

// Provider supplies the current rule set definitions.
type Provider interface {
	// InterestingRuleSets returns all defined rule sets keyed by name.
	InterestingRuleSets() (map[string]*rules.RuleSet, error)
}

// Static is a fixed in-memory Provider, useful for tests and embedding.
type Static map[string]*rules.RuleSet

// InterestingRuleSets returns the static definitions.
func (s Static) InterestingRuleSets() (map[string]*rules.RuleSet, error) {
	out := make(map[string]*rules.RuleSet, len(s))
	for name, set := range s {
		out[name] = set
	}
	return out, nil
}

// ruleSpec is the YAML shape of a single rule.
type ruleSpec struct {
	Label      string   `mapstructure:"label"`
	NameGlob   string   `mapstructure:"name_glob"`
	PathGlob   string   `mapstructure:"path_glob"`
	Extensions []string `mapstructure:"extensions"`
	TypeGroup  string   `mapstructure:"type_group"`
	MinSize    string   `mapstructure:"min_size"`
}

// setSpec is the YAML shape of a rule set.
type setSpec struct {
	Name  string     `mapstructure:"name"`
	Rules []ruleSpec `mapstructure:"rules"`
}

// fileSpec is the YAML shape of the definitions file.
type fileSpec struct {
	RuleSets []setSpec `mapstructure:"rule_sets"`
}

// Manager loads rule set definitions from a YAML file. It caches the
// parsed definitions and serves them until Reload replaces them. All
// methods are safe for concurrent use.
type Manager struct {
	path string

	mu     sync.RWMutex
	sets   map[string]*rules.RuleSet
	loaded bool
}

// NewManager creates a manager reading definitions from path. The file is
// not read until the first InterestingRuleSets or Reload call.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the definitions file path.
func (m *Manager) Path() string {
	return m.path
}

// InterestingRuleSets returns the current definitions, loading the file on
// first use. The returned map is a copy; the rule sets themselves are
// immutable and shared.
func (m *Manager) InterestingRuleSets() (map[string]*rules.RuleSet, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.copySets(), nil
	}
	m.mu.RUnlock()

	if err := m.Reload(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copySets(), nil
}

// copySets returns a shallow copy of the current definitions map.
// Callers must hold at least a read lock.
func (m *Manager) copySets() map[string]*rules.RuleSet {
	out := make(map[string]*rules.RuleSet, len(m.sets))
	for name, set := range m.sets {
		out[name] = set
	}
	return out
}

// Reload re-reads the definitions file and replaces the cached rule sets.
// On failure the previous definitions stay in place.
func (m *Manager) Reload() error {
	sets, err := loadFile(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sets = sets
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// loadFile parses the YAML definitions file into rule sets.
func loadFile(path string) (map[string]*rules.RuleSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var spec fileSpec
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	sets := make(map[string]*rules.RuleSet, len(spec.RuleSets))
	for _, ss := range spec.RuleSets {
		set, err := buildSet(ss)
		if err != nil {
			return nil, fmt.Errorf("%w: rule set %q: %v", ErrUnreadable, ss.Name, err)
		}
		sets[set.Name()] = set
	}
	return sets, nil
}

// buildSet converts a parsed set spec into an immutable rule set.
func buildSet(ss setSpec) (*rules.RuleSet, error) {
	built := make([]*rules.Rule, 0, len(ss.Rules))
	for _, rs := range ss.Rules {
		var opts []rules.RuleOption
		if rs.NameGlob != "" {
			opts = append(opts, rules.WithNameGlob(rs.NameGlob))
		}
		if rs.PathGlob != "" {
			opts = append(opts, rules.WithPathGlob(rs.PathGlob))
		}
		if len(rs.Extensions) > 0 {
			opts = append(opts, rules.WithExtensions(rs.Extensions...))
		}
		if rs.TypeGroup != "" {
			opts = append(opts, rules.WithTypeGroup(rs.TypeGroup))
		}
		if rs.MinSize != "" {
			size, err := types.ParseSize(rs.MinSize)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rs.Label, err)
			}
			opts = append(opts, rules.WithMinSize(size))
		}

		r, err := rules.NewRule(rs.Label, opts...)
		if err != nil {
			return nil, err
		}
		built = append(built, r)
	}
	return rules.NewRuleSet(ss.Name, built...)
}

// Ensure Manager implements Provider.
var _ Provider = (*Manager)(nil)
var _ Provider = (Static)(nil)
