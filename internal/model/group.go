package model

import (
	"errors"
	"fmt"
)

// GroupKind is the closed set of proxy-group types the compiler emits.
type GroupKind int

const (
	KindSelect GroupKind = iota
	KindURLTest
	KindLoadBalance
	KindFallback
)

func (k GroupKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindURLTest:
		return "url-test"
	case KindLoadBalance:
		return "load-balance"
	case KindFallback:
		return "fallback"
	default:
		return fmt.Sprintf("GroupKind(%d)", int(k))
	}
}

// HasProbe reports whether groups of this kind carry health-check settings.
func (k GroupKind) HasProbe() bool {
	switch k {
	case KindURLTest, KindFallback:
		return true
	case KindSelect, KindLoadBalance:
		return false
	default:
		return false
	}
}

// Probe is the health check a url-test/fallback group asks the client to run.
type Probe struct {
	URL         string `yaml:"url"`
	IntervalSec int    `yaml:"interval"`  // 0 means "client default"
	ToleranceMS int    `yaml:"tolerance"` // 0 means "not set"
}

// Group is one entry of "proxy-groups".
//
// Members come from two sources that the client merges: Proxies (explicit
// group/proxy names, order-significant) and, when IncludeAll is set, every
// node whose name matches Filter and does not match ExcludeFilter.
type Group struct {
	Name string
	Kind GroupKind
	Icon string

	Proxies []string

	IncludeAll    bool
	Filter        string
	ExcludeFilter string

	// url-test / fallback only
	Probe *Probe
}

var (
	errEmptyGroupName = errors.New("empty group name")
	errSelfReference  = errors.New("group references itself")
	errDuplicateGroup = errors.New("duplicate group name")
	errProbeMismatch  = errors.New("probe does not match group kind")
)

// GroupError reports which group broke a graph invariant.
type GroupError struct {
	Group string
	Err   error
}

func (e *GroupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("group %q: %v", e.Group, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// ValidateGroups checks the invariants every emitted group graph must hold:
// unique non-empty names, no self reference, and probes only on kinds that
// use them.
func ValidateGroups(groups []Group) error {
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return &GroupError{Group: g.Name, Err: errEmptyGroupName}
		}
		if _, ok := seen[g.Name]; ok {
			return &GroupError{Group: g.Name, Err: errDuplicateGroup}
		}
		seen[g.Name] = struct{}{}

		for _, m := range g.Proxies {
			if m == g.Name {
				return &GroupError{Group: g.Name, Err: errSelfReference}
			}
		}

		switch g.Kind {
		case KindURLTest, KindFallback:
			if g.Probe == nil || g.Probe.URL == "" {
				return &GroupError{Group: g.Name, Err: errProbeMismatch}
			}
		case KindSelect, KindLoadBalance:
			if g.Probe != nil {
				return &GroupError{Group: g.Name, Err: errProbeMismatch}
			}
		default:
			return &GroupError{Group: g.Name, Err: fmt.Errorf("unknown kind %s", g.Kind)}
		}
	}
	return nil
}

// GroupNames returns group names in order.
func GroupNames(groups []Group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}
