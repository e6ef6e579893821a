package subinfo

import (
	"strings"
	"time"

	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/dlclark/regexp2"
	"github.com/samber/lo"
)

// junkPattern matches names providers use for advertisement or status entries
// rather than real endpoints.
const junkPattern = `(?i)(套餐|到期|有效|剩余|版本|已用|过期|失联|测试|关注|官方|网址|备用|群|TEST|客服|网站|获取|订阅|机场|下次|官址|联系|邮箱|工单|学术|USE|USED|TOTAL|EXPIRE|EMAIL|官网|公益|请用)`

var (
	junkRe        = regexp2.MustCompile(junkPattern, regexp2.None)
	providerTagRe = regexp2.MustCompile(`\[(.*?)\]`, regexp2.None)
	trafficRe     = regexp2.MustCompile(`(?i)(?:剩余|可用)流量[\s:：]*([\d.]+\s*(?:G|M|T)B?)`, regexp2.None)
	expiryRe      = regexp2.MustCompile(`套餐到期[\s:：]*(\d{4}-\d{2}-\d{2})`, regexp2.None)
	resetRe       = regexp2.MustCompile(`重置[\s:：]*(.*?)(?:\r\n|\r|\n|$)`, regexp2.None)
)

var foldKeywords = []string{"剩余流量", "可用流量", "套餐到期", "重置"}

// NewInfoNode builds a placeholder endpoint that only carries a name. Clients
// list it in groups but it never connects anywhere useful.
func NewInfoNode(name string) model.Node {
	return model.Node{
		Name: name,
		Params: map[string]any{
			"name":     name,
			"type":     "ss",
			"server":   "info.local",
			"port":     1,
			"cipher":   "none",
			"password": "info",
		},
	}
}

// UpdatedAtNode is the node listed by the 更新时间 group.
func UpdatedAtNode(now time.Time) model.Node { return NewInfoNode(UpdatedAtName(now)) }

// IsJunk reports whether name is an existing info node or a provider status
// entry that should not be offered as an endpoint.
func IsJunk(name string) bool {
	if strings.HasPrefix(name, InfoPrefix) {
		return true
	}
	return match(junkRe, name)
}

// FilterJunk drops nodes for which IsJunk reports true.
func FilterJunk(nodes []model.Node) []model.Node {
	return lo.Reject(nodes, func(n model.Node, _ int) bool { return IsJunk(n.Name) })
}

// PrefixProvider renames every node to "[provider] name". Params are copied,
// the input is left untouched.
func PrefixProvider(nodes []model.Node, provider string) []model.Node {
	if provider == "" {
		return nodes
	}
	return lo.Map(nodes, func(n model.Node, _ int) model.Node {
		return rename(n, "["+provider+"] "+n.Name)
	})
}

// ProviderFromNodes returns the tag of the first "[tag] ..." node name, or
// fallback when no node carries one.
func ProviderFromNodes(nodes []model.Node, fallback string) string {
	for _, n := range nodes {
		if tag, ok := group1(providerTagRe, n.Name); ok && tag != "" {
			return tag
		}
	}
	return fallback
}

type foldedInfo struct {
	traffic, expiry, reset string
}

// FoldProviderInfo replaces the scattered status nodes some providers emit
// (剩余流量 / 套餐到期 / 重置 ...) with one "Info-<provider>" node per
// provider, placed first. Only "[provider] ..." names are considered and
// existing Info- nodes are kept as they are.
func FoldProviderInfo(nodes []model.Node) []model.Node {
	var order []string
	data := map[string]*foldedInfo{}
	drop := map[int]bool{}

	for i, n := range nodes {
		if strings.HasPrefix(n.Name, InfoPrefix) {
			continue
		}
		provider, ok := group1(providerTagRe, n.Name)
		if !ok {
			continue
		}
		if !lo.SomeBy(foldKeywords, func(k string) bool { return strings.Contains(n.Name, k) }) {
			continue
		}
		d, seen := data[provider]
		if !seen {
			d = &foldedInfo{}
			data[provider] = d
			order = append(order, provider)
		}
		if v, ok := group1(trafficRe, n.Name); ok {
			d.traffic = strings.Join(strings.Fields(v), "")
		}
		if v, ok := group1(expiryRe, n.Name); ok {
			d.expiry = strings.TrimSpace(v)
		}
		if v, ok := group1(resetRe, n.Name); ok {
			d.reset = strings.TrimSpace(v)
		}
		drop[i] = true
	}
	if len(order) == 0 {
		return nodes
	}

	out := make([]model.Node, 0, len(nodes)-len(drop)+len(order))
	for _, provider := range order {
		d := data[provider]
		parts := []string{
			InfoPrefix + provider,
			"流量: " + orNA(d.traffic),
			"到期: " + orNA(d.expiry),
		}
		if d.reset != "" {
			parts = append(parts, "重置: "+d.reset)
		}
		out = append(out, NewInfoNode(strings.Join(parts, " | ")))
	}
	for i, n := range nodes {
		if !drop[i] {
			out = append(out, n)
		}
	}
	return out
}

func rename(n model.Node, name string) model.Node {
	params := make(map[string]any, len(n.Params)+1)
	for k, v := range n.Params {
		params[k] = v
	}
	params["name"] = name
	return model.Node{Name: name, Params: params}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func match(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

func group1(re *regexp2.Regexp, s string) (string, bool) {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return "", false
	}
	g := m.GroupByNumber(1)
	if g == nil {
		return "", false
	}
	return g.String(), true
}

// Prepare runs the per-subscription pipeline: status and junk entries are
// removed, the rest are tagged with provider, and one info node is put in
// front. With a usage header the info node is built from it; without one the
// provider's own status entries are folded into it when there are any.
//
// An empty provider is taken from the nodes' own "[tag]" and no tag is added.
// Junk detection looks at the names as the provider sent them, so a provider
// name that happens to contain a junk keyword does not drop every node.
func Prepare(nodes []model.Node, provider string, info *UserInfo, opts InfoOptions, now time.Time) []model.Node {
	tag := provider != ""
	if !tag {
		provider = ProviderFromNodes(nodes, "订阅")
	}
	label := func(ns []model.Node) []model.Node {
		if !tag {
			return ns
		}
		return PrefixProvider(ns, provider)
	}
	junk, kept := lo.FilterReject(nodes, func(n model.Node, _ int) bool { return IsJunk(n.Name) })

	var head []model.Node
	if info != nil {
		head = []model.Node{NewInfoNode(InfoNodeName(provider, info, opts, now))}
	} else {
		status := lo.Reject(junk, func(n model.Node, _ int) bool { return strings.HasPrefix(n.Name, InfoPrefix) })
		head = lo.Filter(FoldProviderInfo(label(status)), func(n model.Node, _ int) bool {
			return strings.HasPrefix(n.Name, InfoPrefix)
		})
	}
	return append(head, label(kept)...)
}
