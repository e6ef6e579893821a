package compiler

import (
	"fmt"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/classify"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/samber/lo"
)

type CompileError struct {
	AppError model.AppError
	Cause    error
}

func (e *CompileError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Compile turns a node list into a complete routing config. It does no I/O
// and never mutates its inputs, so concurrent calls may share cat.
//
// Any node list is accepted, including an empty one. An error means the
// catalog itself cannot produce a consistent graph.
func Compile(nodes []model.Node, flags Flags, cat *catalog.Catalog) (*model.RoutingConfig, error) {
	if cat == nil {
		return nil, &CompileError{
			AppError: model.AppError{
				Code:    "CATALOG_VALIDATE_ERROR",
				Message: "catalog 不能为空",
				Stage:   "compile",
			},
		}
	}

	res := classify.Classify(nodes, cat)
	regionNames := lo.Map(res.Regions, func(r catalog.Region, _ int) string { return RegionGroupName(r.ID) })

	lists := BuildLists(flags, res.HasLowCost, regionNames)
	regionGroups := BuildRegionGroups(res.Regions, flags, cat)
	groups := AssembleGroups(lists, regionGroups, res.HasLowCost, flags, cat)

	if err := model.ValidateGroups(groups); err != nil {
		return nil, &CompileError{
			AppError: model.AppError{
				Code:    "GROUP_GRAPH_INVALID",
				Message: "策略组结构不合法",
				Stage:   "compile",
			},
			Cause: err,
		}
	}

	rs, err := compileRules(cat.Rules, groups)
	if err != nil {
		return nil, err
	}

	dns := cat.DNS
	dns.IPv6 = flags.IPv6

	cfg := &model.RoutingConfig{
		Proxies:       append([]model.Node(nil), nodes...),
		Groups:        groups,
		RuleProviders: append([]model.RuleProvider(nil), cat.RuleProviders...),
		Rules:         rs,
		Sniffer:       cat.Sniffer,
		DNS:           dns,
		GeodataMode:   cat.GeodataMode,
	}
	if cat.GeoxURL != nil {
		geox := *cat.GeoxURL
		cfg.GeoxURL = &geox
	}
	if flags.FullConfig {
		rt := cat.Runtime
		rt.IPv6 = flags.IPv6
		rt.DisableKeepAlive = !flags.KeepAlive
		cfg.Runtime = &rt
	}
	return cfg, nil
}

// compileRules drops rules that target a group this compilation did not emit
// (a region rule with no nodes in that region). The terminating MATCH must
// resolve.
func compileRules(in []model.Rule, groups []model.Group) ([]model.Rule, error) {
	names := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		names[g.Name] = struct{}{}
	}
	resolves := func(action string) bool {
		if model.IsBuiltinAction(action) {
			return true
		}
		_, ok := names[action]
		return ok
	}

	out := make([]model.Rule, 0, len(in))
	for _, r := range in {
		if resolves(r.Action) {
			out = append(out, r)
			continue
		}
		if r.Type == "MATCH" {
			return nil, &CompileError{
				AppError: model.AppError{
					Code:    "REFERENCE_NOT_FOUND",
					Message: fmt.Sprintf("兜底规则 ACTION 引用不存在：%s", r.Action),
					Stage:   "compile",
					Snippet: r.String(),
				},
			}
		}
	}
	return out, nil
}
