// Package classify counts nodes per catalog region and detects low-cost nodes.
package classify

import (
	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/model"
)

// Result is the outcome of one classification pass.
type Result struct {
	// Counts maps region id to the number of nodes attributed to it. Only
	// regions with at least one node are present.
	Counts map[string]int

	// Regions lists the present regions in catalog order.
	Regions []catalog.Region

	HasLowCost bool
}

// Classify attributes each node to at most one region: the first region in
// catalog order whose pattern matches its name. Nodes whose names carry a
// landing, informational or low-cost marker are not counted.
//
// HasLowCost is computed over every node, including those skipped above.
func Classify(nodes []model.Node, cat *catalog.Catalog) Result {
	res := Result{Counts: make(map[string]int)}
	f := cat.Filters

	for _, n := range nodes {
		if f.LowCost.MatchString(n.Name) {
			res.HasLowCost = true
		}
		if excluded(f, n.Name) {
			continue
		}
		for _, reg := range cat.Regions {
			if reg.Pattern.MatchString(n.Name) {
				res.Counts[reg.ID]++
				break
			}
		}
	}

	for _, reg := range cat.Regions {
		if res.Counts[reg.ID] > 0 {
			res.Regions = append(res.Regions, reg)
		}
	}
	return res
}

func excluded(f catalog.Filters, name string) bool {
	return f.Landing.MatchString(name) ||
		f.Info.MatchString(name) ||
		f.LowCost.MatchString(name)
}

// Region returns the region a single node would be counted under, or false
// when the node is excluded or matches no region.
func Region(name string, cat *catalog.Catalog) (catalog.Region, bool) {
	if excluded(cat.Filters, name) {
		return catalog.Region{}, false
	}
	for _, reg := range cat.Regions {
		if reg.Pattern.MatchString(name) {
			return reg, true
		}
	}
	return catalog.Region{}, false
}
