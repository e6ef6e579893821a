package catalog

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// Pattern is a name filter compiled with the same .NET-style engine mihomo
// uses for group "filter"/"exclude-filter", so classification here agrees
// with what the client later selects.
type Pattern struct {
	raw string
	re  *regexp2.Regexp
}

// CompilePattern compiles expr. A leading "(?i)" is honored by the engine.
func CompilePattern(expr string) (Pattern, error) {
	if strings.TrimSpace(expr) == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{raw: expr, re: re}, nil
}

// MatchString reports whether s matches. A zero Pattern matches nothing.
func (p Pattern) MatchString(s string) bool {
	if p.re == nil {
		return false
	}
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

func (p Pattern) String() string { return p.raw }

func (p Pattern) IsZero() bool { return p.re == nil }

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	compiled, err := CompilePattern(s)
	if err != nil {
		return fmt.Errorf("line %d: pattern %q: %w", value.Line, s, err)
	}
	*p = compiled
	return nil
}

func (p Pattern) MarshalYAML() (any, error) { return p.raw, nil }
