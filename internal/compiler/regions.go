package compiler

import (
	"strings"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/samber/lo"
)

// BuildRegionGroups emits one group per present region, in the given order.
//
// Region groups always exclude informational and low-cost nodes. ISP/landing
// nodes are excluded too unless landing mode is on.
func BuildRegionGroups(regions []catalog.Region, flags Flags, cat *catalog.Catalog) []model.Group {
	exclude := regionExcludeFilter(flags, cat.Filters)

	return lo.Map(regions, func(r catalog.Region, _ int) model.Group {
		g := model.Group{
			Name:          RegionGroupName(r.ID),
			Icon:          r.Icon,
			IncludeAll:    true,
			Filter:        r.Pattern.String(),
			ExcludeFilter: exclude,
		}
		if flags.LoadBalance {
			g.Kind = model.KindLoadBalance
		} else {
			g.Kind = model.KindURLTest
			probe := cat.Probes.Region
			g.Probe = &probe
		}
		return g
	})
}

func regionExcludeFilter(flags Flags, f catalog.Filters) string {
	if flags.Landing {
		return joinPatterns(f.LowCost, f.Info)
	}
	return joinPatterns(f.Landing, f.LowCost, f.Info)
}

// joinPatterns ORs patterns into one expression. Each keeps its own case
// sensitivity: a leading "(?i)" becomes a scoped "(?i:...)" group, so the
// result matches exactly the names the classifier skips.
func joinPatterns(ps ...catalog.Pattern) string {
	parts := lo.Map(ps, func(p catalog.Pattern, _ int) string {
		if rest, ok := strings.CutPrefix(p.String(), "(?i)"); ok {
			return "(?i:" + rest + ")"
		}
		return "(?:" + p.String() + ")"
	})
	return strings.Join(parts, "|")
}
