package compiler

import (
	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/samber/lo"
)

// AssembleGroups lays out the full proxy-group graph in display order and
// appends GLOBAL, whose members are the names of every group before it.
func AssembleGroups(lists Lists, regionGroups []model.Group, hasLowCost bool, flags Flags, cat *catalog.Catalog) []model.Group {
	f := cat.Filters
	infoRaw := f.Info.String()

	var out []model.Group
	add := func(g model.Group) {
		if g.Icon == "" {
			g.Icon = icons[g.Name]
		}
		g.Proxies = lo.Without(g.Proxies, g.Name)
		out = append(out, g)
	}
	sel := func(name string, members []string) model.Group {
		return model.Group{Name: name, Kind: model.KindSelect, Proxies: clone(members)}
	}

	add(model.Group{Name: GroupUpdatedAt, Kind: model.KindSelect, IncludeAll: true, Filter: f.UpdatedAt.String()})
	add(model.Group{Name: GroupTraffic, Kind: model.KindSelect, IncludeAll: true, Filter: infoRaw, ExcludeFilter: f.UpdatedAt.String()})
	add(sel(GroupSelect, lists.Selector))
	add(model.Group{Name: GroupManual, Kind: model.KindSelect, IncludeAll: true, ExcludeFilter: infoRaw})

	if flags.Landing {
		front := lo.Without(lists.Selector, GroupLanding, GroupFallback)
		add(model.Group{Name: GroupFrontProxy, Kind: model.KindSelect, IncludeAll: true, ExcludeFilter: f.Landing.String(), Proxies: front})
		add(model.Group{Name: GroupLanding, Kind: model.KindSelect, IncludeAll: true, Filter: f.Landing.String()})
	}

	fallbackProbe := cat.Probes.Fallback
	add(model.Group{Name: GroupFallback, Kind: model.KindFallback, Proxies: clone(lists.Fallback), Probe: &fallbackProbe})

	for _, name := range []string{GroupStatic, GroupMediaCDN, GroupAI, GroupTelegram, GroupGoogle, GroupNetflix, GroupSpotify, GroupEHentai} {
		add(sel(name, lists.Forward))
	}
	add(sel(GroupSSH, lists.Direct))
	add(sel(GroupSteamFix, []string{PolicyDirect, GroupSelect}))
	add(sel(GroupDirect, []string{PolicyDirect, GroupSelect}))
	add(sel(GroupAdBlock, []string{PolicyReject, GroupDirect}))
	add(model.Group{Name: GroupSelfHosted, Kind: model.KindSelect, IncludeAll: true, Filter: f.SelfHosted.String(), ExcludeFilter: infoRaw, Proxies: []string{PolicyDirect}})
	add(model.Group{Name: GroupGame, Kind: model.KindSelect, IncludeAll: true, ExcludeFilter: infoRaw, Proxies: clone(lists.Direct)})

	if hasLowCost {
		lowProbe := cat.Probes.LowCost
		add(model.Group{Name: GroupLowCost, Kind: model.KindURLTest, IncludeAll: true, Filter: f.LowCost.String(), ExcludeFilter: infoRaw, Probe: &lowProbe})
	}

	for _, g := range regionGroups {
		add(g)
	}

	add(model.Group{Name: GroupGlobal, Kind: model.KindSelect, IncludeAll: true, Proxies: model.GroupNames(out)})
	return out
}

func clone(s []string) []string { return append([]string(nil), s...) }
