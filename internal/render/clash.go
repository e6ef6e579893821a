package render

import (
	"bytes"
	"sort"

	"github.com/John-Robertt/clash-override/internal/model"
	"gopkg.in/yaml.v3"
)

// renderClash builds the document as a yaml.Node tree so section and key
// order is stable: proxies carry "name" first, then their keys sorted.
func renderClash(cfg *model.RoutingConfig) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, v any) error {
		n, err := valueNode(v)
		if err != nil {
			return err
		}
		root.Content = append(root.Content, keyNode(key), n)
		return nil
	}

	proxies, err := proxiesNode(cfg.Proxies)
	if err != nil {
		return nil, err
	}
	root.Content = append(root.Content, keyNode("proxies"), proxies)

	if cfg.Runtime != nil {
		rt, err := valueNode(cfg.Runtime)
		if err != nil {
			return nil, err
		}
		root.Content = append(root.Content, rt.Content...)
	}

	if err := add("proxy-groups", groupDocs(cfg.Groups)); err != nil {
		return nil, err
	}

	providers := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range cfg.RuleProviders {
		body, err := valueNode(providerBody(p))
		if err != nil {
			return nil, err
		}
		providers.Content = append(providers.Content, keyNode(p.Name), body)
	}
	if len(providers.Content) == 0 {
		providers.Style = yaml.FlowStyle
	}
	root.Content = append(root.Content, keyNode("rule-providers"), providers)

	if err := add("rules", ruleStrings(cfg.Rules)); err != nil {
		return nil, err
	}
	if err := add("sniffer", cfg.Sniffer); err != nil {
		return nil, err
	}
	if err := add("dns", cfg.DNS); err != nil {
		return nil, err
	}
	if err := add("geodata-mode", cfg.GeodataMode); err != nil {
		return nil, err
	}
	if cfg.GeoxURL != nil {
		if err := add("geox-url", cfg.GeoxURL); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, encodeError(err)
	}
	if err := enc.Close(); err != nil {
		return nil, encodeError(err)
	}
	return buf.Bytes(), nil
}

func proxiesNode(nodes []model.Node) (*yaml.Node, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	if len(nodes) == 0 {
		seq.Style = yaml.FlowStyle
	}
	for _, n := range nodes {
		m := &yaml.Node{Kind: yaml.MappingNode}
		m.Content = append(m.Content, keyNode("name"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.Name})
		for _, k := range sortedParamKeys(n.Params) {
			v, err := valueNode(n.Params[k])
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, keyNode(k), v)
		}
		seq.Content = append(seq.Content, m)
	}
	return seq, nil
}

func sortedParamKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "name" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keyNode(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

func valueNode(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, encodeError(err)
	}
	return &n, nil
}

func encodeError(err error) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    "RENDER_ERROR",
			Message: "YAML 序列化失败",
			Stage:   "render",
		},
		Cause: err,
	}
}
