package classify

import (
	"fmt"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/samber/lo"
)

// Members resolves the members a client would show for g: the explicit
// proxies first, then (for include-all groups) every node whose name matches
// Filter and does not match ExcludeFilter, in input order. Names appear once.
func Members(g model.Group, nodes []model.Node) ([]string, error) {
	out := append([]string(nil), g.Proxies...)
	if !g.IncludeAll {
		return out, nil
	}

	var filter, exclude catalog.Pattern
	var err error
	if g.Filter != "" {
		if filter, err = catalog.CompilePattern(g.Filter); err != nil {
			return nil, fmt.Errorf("group %q filter: %w", g.Name, err)
		}
	}
	if g.ExcludeFilter != "" {
		if exclude, err = catalog.CompilePattern(g.ExcludeFilter); err != nil {
			return nil, fmt.Errorf("group %q exclude-filter: %w", g.Name, err)
		}
	}

	matched := lo.FilterMap(nodes, func(n model.Node, _ int) (string, bool) {
		if !filter.IsZero() && !filter.MatchString(n.Name) {
			return "", false
		}
		if exclude.MatchString(n.Name) {
			return "", false
		}
		return n.Name, true
	})
	return lo.Uniq(append(out, matched...)), nil
}
