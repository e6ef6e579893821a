package sub

import (
	"encoding/json"
	"math"

	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/muhammadmuzzammil1998/jsonc"
)

// parseJSON accepts JSON with comments: either an array of proxy objects or
// an object with a "proxies" array.
func parseJSON(sourceURL, content string) ([]model.Node, error) {
	raw := jsonc.ToJSON([]byte(content))

	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		var doc struct {
			Proxies []map[string]any `json:"proxies"`
		}
		if err2 := json.Unmarshal(raw, &doc); err2 != nil {
			return nil, newParseError(sourceURL, 0, truncateSnippet(content, 200), "SUB_PARSE_ERROR", "订阅 JSON 解析失败", "expected: [...] or {\"proxies\": [...]}", err2)
		}
		list = doc.Proxies
	}
	for _, m := range list {
		normalizeNumbers(m)
	}
	return nodesFromMaps(sourceURL, list)
}

// normalizeNumbers turns integral float64 values (how encoding/json decodes
// every number) back into ints so ports render as 443, not 443.0.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}
