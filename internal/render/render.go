// Package render serializes a compiled RoutingConfig for clients.
package render

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/clash-override/internal/model"
)

type Target string

const (
	TargetClash Target = "clash" // mihomo / Clash.Meta YAML
	TargetJSON  Target = "json"
)

// ParseTarget maps a request value to a Target; "" means clash.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clash", "mihomo", "meta", "yaml":
		return TargetClash, nil
	case "json":
		return TargetJSON, nil
	default:
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_TARGET",
				Message: fmt.Sprintf("不支持的 target：%s", s),
				Stage:   "render",
				Hint:    "supported: clash, json",
			},
		}
	}
}

// ContentType is the response media type for target.
func (t Target) ContentType() string {
	if t == TargetJSON {
		return "application/json; charset=utf-8"
	}
	return "text/yaml; charset=utf-8"
}

// Ext is the file extension used in download names.
func (t Target) Ext() string {
	if t == TargetJSON {
		return ".json"
	}
	return ".yaml"
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

func Render(target Target, cfg *model.RoutingConfig) ([]byte, error) {
	if cfg == nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "render input 不能为空",
				Stage:   "render",
			},
		}
	}
	if err := checkProxies(cfg.Proxies); err != nil {
		return nil, err
	}
	switch target {
	case TargetClash:
		return renderClash(cfg)
	case TargetJSON:
		return renderJSON(cfg)
	default:
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_TARGET",
				Message: fmt.Sprintf("不支持的 target：%s", target),
				Stage:   "render",
			},
		}
	}
}

// checkProxies rejects nodes a client could not load at all. Connection
// parameters themselves are passed through unchecked.
func checkProxies(nodes []model.Node) error {
	for i, n := range nodes {
		if n.Name == "" {
			return &RenderError{
				AppError: model.AppError{
					Code:    "INVALID_ARGUMENT",
					Message: "节点名称不能为空",
					Stage:   "render",
					Snippet: fmt.Sprintf("proxies[%d]", i),
				},
			}
		}
		if typ, _ := n.Params["type"].(string); typ == "" {
			return &RenderError{
				AppError: model.AppError{
					Code:    "INVALID_ARGUMENT",
					Message: "节点缺少 type 字段",
					Stage:   "render",
					Snippet: n.Name,
				},
			}
		}
	}
	return nil
}

// groupDoc is the wire shape of one proxy group; field order is output order.
type groupDoc struct {
	Name          string   `yaml:"name" json:"name"`
	Type          string   `yaml:"type" json:"type"`
	Proxies       []string `yaml:"proxies,omitempty" json:"proxies,omitempty"`
	IncludeAll    bool     `yaml:"include-all,omitempty" json:"include-all,omitempty"`
	Filter        string   `yaml:"filter,omitempty" json:"filter,omitempty"`
	ExcludeFilter string   `yaml:"exclude-filter,omitempty" json:"exclude-filter,omitempty"`
	URL           string   `yaml:"url,omitempty" json:"url,omitempty"`
	Interval      int      `yaml:"interval,omitempty" json:"interval,omitempty"`
	Tolerance     int      `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Icon          string   `yaml:"icon,omitempty" json:"icon,omitempty"`
}

func groupDocs(groups []model.Group) []groupDoc {
	out := make([]groupDoc, 0, len(groups))
	for _, g := range groups {
		d := groupDoc{
			Name:          g.Name,
			Type:          g.Kind.String(),
			Proxies:       g.Proxies,
			IncludeAll:    g.IncludeAll,
			Filter:        g.Filter,
			ExcludeFilter: g.ExcludeFilter,
			Icon:          g.Icon,
		}
		if g.Probe != nil {
			d.URL = g.Probe.URL
			d.Interval = g.Probe.IntervalSec
			d.Tolerance = g.Probe.ToleranceMS
		}
		out = append(out, d)
	}
	return out
}

type providerDoc struct {
	Type     string `yaml:"type" json:"type"`
	Behavior string `yaml:"behavior" json:"behavior"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty"`
	Interval int    `yaml:"interval,omitempty" json:"interval,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
}

func providerBody(p model.RuleProvider) providerDoc {
	return providerDoc{
		Type:     p.Type,
		Behavior: p.Behavior,
		Format:   p.Format,
		Interval: p.Interval,
		URL:      p.URL,
		Path:     p.Path,
	}
}

func ruleStrings(rules []model.Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.String())
	}
	return out
}
