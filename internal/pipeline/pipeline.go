// Package pipeline turns parsed subscriptions into a compiled routing config:
// junk removal, provider labels, usage nodes, name normalization, compile.
package pipeline

import (
	"strings"
	"time"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/compiler"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/John-Robertt/clash-override/internal/sub"
	"github.com/John-Robertt/clash-override/internal/subinfo"
	"github.com/sirupsen/logrus"
)

// Source is one parsed subscription.
type Source struct {
	URL      string
	Nodes    []model.Node
	Provider string // "" derives the label from the nodes' own "[tag]"

	// UserInfo is the raw subscription-userinfo header; "" when absent.
	UserInfo string
}

type Options struct {
	Flags compiler.Flags

	Info        bool // emit Info- usage nodes
	Stamp       bool // emit the 更新时间 node
	InfoOptions subinfo.InfoOptions

	Catalog *catalog.Catalog
	Now     time.Time
	Logger  logrus.FieldLogger
}

// Result carries the compiled config plus the aggregated usage header the
// HTTP layer echoes back ("" when no source reported usage).
type Result struct {
	Config   *model.RoutingConfig
	UserInfo string
}

// Run prepares every source in order, concatenates them and compiles.
// A missing or malformed usage header is logged and skipped; it never fails
// the run.
func Run(sources []Source, opt Options) (Result, error) {
	if opt.Catalog == nil {
		opt.Catalog = catalog.Default()
	}
	if opt.Now.IsZero() {
		opt.Now = time.Now()
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		nodes []model.Node
		infos []subinfo.UserInfo
	)
	for _, src := range sources {
		var info *subinfo.UserInfo
		if strings.TrimSpace(src.UserInfo) != "" {
			u, err := subinfo.ParseUserInfo(src.UserInfo)
			if err != nil {
				log.WithError(err).WithField("source", redactURL(src.URL)).Warn("ignoring subscription-userinfo")
			} else {
				info = &u
				infos = append(infos, u)
			}
		}

		if opt.Info {
			nodes = append(nodes, subinfo.Prepare(src.Nodes, src.Provider, info, opt.InfoOptions, opt.Now)...)
			continue
		}
		kept := subinfo.FilterJunk(src.Nodes)
		if src.Provider != "" {
			kept = subinfo.PrefixProvider(kept, src.Provider)
		}
		nodes = append(nodes, kept...)
	}

	var head []model.Node
	if opt.Stamp {
		head = append(head, subinfo.UpdatedAtNode(opt.Now))
	}
	sum := subinfo.Aggregate(infos, opt.Now)
	if opt.Info && len(infos) > 1 {
		if name, ok := subinfo.TotalInfoNodeName(sum, opt.Now); ok {
			head = append(head, subinfo.NewInfoNode(name))
		}
	}
	nodes = sub.Normalize(append(head, nodes...), compiler.ReservedNames(opt.Catalog))

	cfg, err := compiler.Compile(nodes, opt.Flags, opt.Catalog)
	if err != nil {
		return Result{}, err
	}

	res := Result{Config: cfg}
	if len(infos) > 0 {
		res.UserInfo = sum.String()
	}
	log.WithFields(logrus.Fields{
		"sources": len(sources),
		"nodes":   len(nodes),
		"groups":  len(cfg.Groups),
	}).Debug("compiled")
	return res, nil
}

// redactURL keeps scheme and host only; subscription paths and queries
// usually embed account tokens.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "(local)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	return scheme + "://" + host
}
