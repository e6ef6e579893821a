package sub

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/clash-override/internal/model"
)

// Normalize makes node names usable as proxy-group members while keeping
// input order:
//   - names are trimmed; an empty name becomes "server:port" when known
//   - a name that equals a reserved name (built-in policy or group name) or an
//     earlier node's name gets the first free "-N" suffix, starting at 2
//
// Params["name"] always mirrors the final name. Inputs are not modified.
func Normalize(nodes []model.Node, reserved []string) []model.Node {
	used := make(map[string]struct{}, len(nodes)+len(reserved))
	for _, r := range reserved {
		used[r] = struct{}{}
	}

	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		base := strings.TrimSpace(n.Name)
		if base == "" {
			base = fallbackName(n.Params)
		}

		name := base
		if _, taken := used[name]; taken || name == "" {
			for i := 2; ; i++ {
				try := fmt.Sprintf("%s-%d", base, i)
				if _, taken := used[try]; !taken {
					name = try
					break
				}
			}
		}
		used[name] = struct{}{}

		params := make(map[string]any, len(n.Params)+1)
		for k, v := range n.Params {
			params[k] = v
		}
		params["name"] = name
		out = append(out, model.Node{Name: name, Params: params})
	}
	return out
}

func fallbackName(params map[string]any) string {
	server, _ := params["server"].(string)
	if server == "" {
		return ""
	}
	if port, ok := params["port"]; ok {
		return fmt.Sprintf("%s:%v", server, port)
	}
	return server
}
