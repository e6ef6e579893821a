package compiler

import (
	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/classify"
	"github.com/John-Robertt/clash-override/internal/model"
)

// Membership is one group with its members resolved against a node list.
type Membership struct {
	Group   string   `json:"group" yaml:"group"`
	Kind    string   `json:"kind" yaml:"kind"`
	Members []string `json:"members" yaml:"members"`
}

// Explain resolves every group of cfg against its proxies, the way a client
// would after loading the config.
func Explain(cfg *model.RoutingConfig) ([]Membership, error) {
	out := make([]Membership, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		members, err := classify.Members(g, cfg.Proxies)
		if err != nil {
			return nil, err
		}
		out = append(out, Membership{Group: g.Name, Kind: g.Kind.String(), Members: members})
	}
	return out, nil
}

// Placement records which region a node was counted under. Region and Group
// are empty for excluded or unmatched nodes.
type Placement struct {
	Node   string `json:"node" yaml:"node"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
	Group  string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Place reports the region of every proxy in cfg as counted by Compile with
// the same catalog.
func Place(cfg *model.RoutingConfig, cat *catalog.Catalog) []Placement {
	out := make([]Placement, 0, len(cfg.Proxies))
	for _, n := range cfg.Proxies {
		p := Placement{Node: n.Name}
		if reg, ok := classify.Region(n.Name, cat); ok {
			p.Region = reg.ID
			p.Group = RegionGroupName(reg.ID)
		}
		out = append(out, p)
	}
	return out
}
