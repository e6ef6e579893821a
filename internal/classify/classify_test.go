package classify

import (
	"reflect"
	"testing"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/model"
)

func nodes(names ...string) []model.Node {
	out := make([]model.Node, 0, len(names))
	for _, n := range names {
		out = append(out, model.Node{Name: n, Params: map[string]any{"name": n}})
	}
	return out
}

func regionIDs(r Result) []string {
	out := make([]string, 0, len(r.Regions))
	for _, reg := range r.Regions {
		out = append(out, reg.ID)
	}
	return out
}

func TestClassify_ProviderScenario(t *testing.T) {
	res := Classify(nodes("[ProviderA] HK-01", "[ProviderA] US-01", "[ProviderA] Info-foo"), catalog.Default())

	if got, want := regionIDs(res), []string{"香港", "美国"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("regions=%v, want=%v", got, want)
	}
	if res.Counts["香港"] != 1 || res.Counts["美国"] != 1 {
		t.Fatalf("counts=%v", res.Counts)
	}
	if _, ok := res.Counts["德国"]; ok {
		t.Fatalf("info node must not be counted: %v", res.Counts)
	}
	if res.HasLowCost {
		t.Fatalf("HasLowCost=true, want=false")
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "香港 US" matches both; 香港 comes first in the catalog.
	res := Classify(nodes("香港 US 中转"), catalog.Default())
	if got, want := regionIDs(res), []string{"香港"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("regions=%v, want=%v", got, want)
	}
	total := 0
	for _, c := range res.Counts {
		total += c
	}
	if total != 1 {
		t.Fatalf("one node counted %d times", total)
	}
}

func TestClassify_CatalogOrder(t *testing.T) {
	res := Classify(nodes("美国 01", "日本 01", "香港 01", "日本 02"), catalog.Default())
	if got, want := regionIDs(res), []string{"香港", "日本", "美国"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("regions=%v, want=%v", got, want)
	}
	if res.Counts["日本"] != 2 {
		t.Fatalf("日本=%d, want=2", res.Counts["日本"])
	}
}

func TestClassify_Exclusions(t *testing.T) {
	res := Classify(nodes("美国 家宽 01", "0.3x 套餐 香港", "Info-更新于 2025-01-01"), catalog.Default())
	if len(res.Regions) != 0 {
		t.Fatalf("regions=%v, want none", regionIDs(res))
	}
	if !res.HasLowCost {
		t.Fatalf("HasLowCost=false, want=true")
	}
}

func TestClassify_Empty(t *testing.T) {
	res := Classify(nil, catalog.Default())
	if len(res.Regions) != 0 || len(res.Counts) != 0 || res.HasLowCost {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
}

func TestRegion(t *testing.T) {
	cat := catalog.Default()
	if r, ok := Region("🇯🇵 Tokyo", cat); !ok || r.ID != "日本" {
		t.Fatalf("Region=%q,%v, want=日本,true", r.ID, ok)
	}
	if _, ok := Region("落地 日本", cat); ok {
		t.Fatalf("landing node should not get a region")
	}
}

func TestMembers(t *testing.T) {
	in := nodes("[ProviderA] HK-01", "[ProviderA] US-01", "[ProviderA] Info-foo")

	g := model.Group{Name: "手动切换", Kind: model.KindSelect, IncludeAll: true, ExcludeFilter: "Info-"}
	got, err := Members(g, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"[ProviderA] HK-01", "[ProviderA] US-01"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("members=%v, want=%v", got, want)
	}

	g = model.Group{Name: "流量信息", Kind: model.KindSelect, IncludeAll: true, Filter: "(?i)Info-", ExcludeFilter: "(?i)Info-更新于"}
	got, err = Members(g, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"[ProviderA] Info-foo"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("members=%v, want=%v", got, want)
	}

	g = model.Group{Name: "自建节点", Kind: model.KindSelect, IncludeAll: true, Filter: "自建", Proxies: []string{"DIRECT"}}
	got, err = Members(g, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"DIRECT"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("members=%v, want=%v", got, want)
	}

	if _, err := Members(model.Group{Name: "x", IncludeAll: true, Filter: "(bad"}, in); err == nil {
		t.Fatalf("expected error for bad filter")
	}
}
