package sub

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/clash-override/internal/model"
	"gopkg.in/yaml.v3"
)

// parseClash reads the "proxies" list of a Clash/mihomo YAML document. Other
// top-level keys (a full provider config) are ignored.
func parseClash(sourceURL, content string) ([]model.Node, error) {
	var doc struct {
		Proxies []map[string]any `yaml:"proxies"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, newParseError(sourceURL, yamlErrorLine(err), truncateSnippet(content, 200), "SUB_PARSE_ERROR", "订阅 YAML 解析失败", "", err)
	}
	return nodesFromMaps(sourceURL, doc.Proxies)
}

// nodesFromMaps turns decoded proxy objects into nodes. Entries must carry a
// "type"; "name" may be missing and then stays empty.
func nodesFromMaps(sourceURL string, entries []map[string]any) ([]model.Node, error) {
	out := make([]model.Node, 0, len(entries))
	for i, m := range entries {
		if m == nil {
			continue
		}
		typ, _ := m["type"].(string)
		if strings.TrimSpace(typ) == "" {
			return nil, newParseError(sourceURL, 0, fmt.Sprintf("proxies[%d]", i), "SUB_PARSE_ERROR", "节点缺少 type 字段", "", nil)
		}
		name := ""
		switch v := m["name"].(type) {
		case string:
			name = v
		case nil:
		default:
			name = fmt.Sprint(v)
		}
		if strings.ContainsAny(name, "\r\n\x00") {
			return nil, newParseError(sourceURL, 0, fmt.Sprintf("proxies[%d]", i), "SUB_PARSE_ERROR", "节点名称包含非法控制字符", "", nil)
		}
		m["name"] = name
		out = append(out, model.Node{Name: name, Params: m})
	}
	return out, nil
}

func yamlErrorLine(err error) int {
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line
	}
	return 0
}
