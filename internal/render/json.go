package render

import (
	"bytes"
	"encoding/json"

	"github.com/John-Robertt/clash-override/internal/model"
)

// jsonDoc mirrors the YAML document; runtime keys are promoted to the top
// level and omitted when Runtime is nil.
type jsonDoc struct {
	Proxies []jsonProxy `json:"proxies"`
	*model.Runtime
	ProxyGroups   []groupDoc     `json:"proxy-groups"`
	RuleProviders jsonProviders  `json:"rule-providers"`
	Rules         []string       `json:"rules"`
	Sniffer       model.Sniffer  `json:"sniffer"`
	DNS           model.DNS      `json:"dns"`
	GeodataMode   bool           `json:"geodata-mode"`
	GeoxURL       *model.GeoxURL `json:"geox-url,omitempty"`
}

type jsonProxy model.Node

func (p jsonProxy) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if err := writeMember(&b, "name", p.Name); err != nil {
		return nil, err
	}
	for _, k := range sortedParamKeys(p.Params) {
		b.WriteByte(',')
		if err := writeMember(&b, k, p.Params[k]); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

type jsonProviders []model.RuleProvider

func (ps jsonProviders) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeMember(&b, p.Name, providerBody(p)); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeMember(b *bytes.Buffer, key string, v any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Write(k)
	b.WriteByte(':')
	b.Write(val)
	return nil
}

func renderJSON(cfg *model.RoutingConfig) ([]byte, error) {
	doc := jsonDoc{
		Proxies:       make([]jsonProxy, 0, len(cfg.Proxies)),
		Runtime:       cfg.Runtime,
		ProxyGroups:   groupDocs(cfg.Groups),
		RuleProviders: jsonProviders(cfg.RuleProviders),
		Rules:         ruleStrings(cfg.Rules),
		Sniffer:       cfg.Sniffer,
		DNS:           cfg.DNS,
		GeodataMode:   cfg.GeodataMode,
		GeoxURL:       cfg.GeoxURL,
	}
	for _, n := range cfg.Proxies {
		doc.Proxies = append(doc.Proxies, jsonProxy(n))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_ERROR",
				Message: "JSON 序列化失败",
				Stage:   "render",
			},
			Cause: err,
		}
	}
	return buf.Bytes(), nil
}
