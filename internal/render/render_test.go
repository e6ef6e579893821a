package render

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/compiler"
	"github.com/John-Robertt/clash-override/internal/model"
	"gopkg.in/yaml.v3"
)

func testConfig(t *testing.T, flags compiler.Flags) *model.RoutingConfig {
	t.Helper()
	nodes := []model.Node{
		{Name: "香港 01", Params: map[string]any{"name": "香港 01", "type": "ss", "server": "hk.example.com", "port": 8388, "cipher": "aes-128-gcm", "password": "123"}},
		{Name: "美国 01", Params: map[string]any{"name": "美国 01", "type": "trojan", "server": "us.example.com", "port": 443, "password": "x", "sni": "us.example.com"}},
	}
	cfg, err := compiler.Compile(nodes, flags, catalog.Default())
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return cfg
}

func TestRender_ClashSectionOrder(t *testing.T) {
	out, err := Render(TargetClash, testConfig(t, compiler.Flags{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(out)

	last := -1
	for _, key := range []string{"proxies:", "proxy-groups:", "rule-providers:", "rules:", "sniffer:", "dns:", "geodata-mode:", "geox-url:"} {
		idx := strings.Index(s, "\n"+key)
		if key == "proxies:" {
			idx = strings.Index(s, key)
		}
		if idx < 0 {
			t.Fatalf("missing %s in:\n%s", key, s)
		}
		if idx < last {
			t.Fatalf("%s out of order in:\n%s", key, s)
		}
		last = idx
	}
	if strings.Contains(s, "mixed-port") {
		t.Fatalf("runtime keys must be omitted without full config:\n%s", s)
	}
}

func TestRender_ClashProxyKeys(t *testing.T) {
	out, err := Render(TargetClash, testConfig(t, compiler.Flags{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "  - name: 香港 01\n    cipher: aes-128-gcm\n") {
		t.Fatalf("name should come first, then sorted keys:\n%s", s)
	}
	if !strings.Contains(s, `password: "123"`) {
		t.Fatalf("numeric-looking string should be quoted:\n%s", s)
	}
	if !strings.Contains(s, "port: 8388") {
		t.Fatalf("port should stay an int:\n%s", s)
	}
}

func TestRender_ClashRoundTrip(t *testing.T) {
	cfg := testConfig(t, compiler.Flags{FullConfig: true, IPv6: true})
	out, err := Render(TargetClash, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		MixedPort   int              `yaml:"mixed-port"`
		IPv6        bool             `yaml:"ipv6"`
		Proxies     []map[string]any `yaml:"proxies"`
		ProxyGroups []struct {
			Name          string   `yaml:"name"`
			Type          string   `yaml:"type"`
			Proxies       []string `yaml:"proxies"`
			IncludeAll    bool     `yaml:"include-all"`
			Filter        string   `yaml:"filter"`
			ExcludeFilter string   `yaml:"exclude-filter"`
			URL           string   `yaml:"url"`
			Interval      int      `yaml:"interval"`
		} `yaml:"proxy-groups"`
		RuleProviders map[string]map[string]any `yaml:"rule-providers"`
		Rules         []string                  `yaml:"rules"`
		DNS           struct {
			IPv6 bool `yaml:"ipv6"`
		} `yaml:"dns"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, out)
	}
	if doc.MixedPort != cfg.Runtime.MixedPort || !doc.IPv6 || !doc.DNS.IPv6 {
		t.Fatalf("runtime not rendered: mixed-port=%d ipv6=%v dns.ipv6=%v", doc.MixedPort, doc.IPv6, doc.DNS.IPv6)
	}
	if len(doc.Proxies) != len(cfg.Proxies) {
		t.Fatalf("proxies=%d, want=%d", len(doc.Proxies), len(cfg.Proxies))
	}
	if len(doc.ProxyGroups) != len(cfg.Groups) {
		t.Fatalf("groups=%d, want=%d", len(doc.ProxyGroups), len(cfg.Groups))
	}
	for i, g := range cfg.Groups {
		got := doc.ProxyGroups[i]
		if got.Name != g.Name || got.Type != g.Kind.String() {
			t.Fatalf("group[%d]=%q/%q, want=%q/%q", i, got.Name, got.Type, g.Name, g.Kind)
		}
		if got.Filter != g.Filter || got.ExcludeFilter != g.ExcludeFilter || got.IncludeAll != g.IncludeAll {
			t.Fatalf("group %q filters not rendered", g.Name)
		}
		if len(got.Proxies) != len(g.Proxies) {
			t.Fatalf("group %q proxies=%q, want=%q", g.Name, got.Proxies, g.Proxies)
		}
		if g.Probe != nil && (got.URL != g.Probe.URL || got.Interval != g.Probe.IntervalSec) {
			t.Fatalf("group %q probe not rendered", g.Name)
		}
	}
	if len(doc.RuleProviders) != len(cfg.RuleProviders) {
		t.Fatalf("rule-providers=%d, want=%d", len(doc.RuleProviders), len(cfg.RuleProviders))
	}
	if _, ok := doc.RuleProviders[cfg.RuleProviders[0].Name]["name"]; ok {
		t.Fatalf("provider body must not repeat its name")
	}
	if got, want := doc.Rules[len(doc.Rules)-1], cfg.Rules[len(cfg.Rules)-1].String(); got != want {
		t.Fatalf("last rule=%q, want=%q", got, want)
	}
}

func TestRender_Deterministic(t *testing.T) {
	for _, target := range []Target{TargetClash, TargetJSON} {
		a, err := Render(target, testConfig(t, compiler.Flags{FullConfig: true}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := Render(target, testConfig(t, compiler.Flags{FullConfig: true}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(a) != string(b) {
			t.Fatalf("target %s: output differs between runs", target)
		}
	}
}

func TestRender_JSON(t *testing.T) {
	cfg := testConfig(t, compiler.Flags{FullConfig: true})
	out, err := Render(TargetJSON, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if doc["mixed-port"] != float64(cfg.Runtime.MixedPort) {
		t.Fatalf("mixed-port=%v", doc["mixed-port"])
	}
	groups, _ := doc["proxy-groups"].([]any)
	if len(groups) != len(cfg.Groups) {
		t.Fatalf("groups=%d, want=%d", len(groups), len(cfg.Groups))
	}
	providers, _ := doc["rule-providers"].(map[string]any)
	if len(providers) != len(cfg.RuleProviders) {
		t.Fatalf("rule-providers=%d, want=%d", len(providers), len(cfg.RuleProviders))
	}
	if !strings.HasPrefix(strings.TrimSpace(string(out)), "{\n  \"proxies\": [\n    {\n      \"name\": \"香港 01\"") {
		t.Fatalf("proxies should come first with name first:\n%s", out)
	}

	out, err = Render(TargetJSON, testConfig(t, compiler.Flags{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "mixed-port") {
		t.Fatalf("runtime keys must be omitted without full config")
	}
}

func TestRender_EmptyConfig(t *testing.T) {
	cfg, err := compiler.Compile(nil, compiler.Flags{}, catalog.Default())
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	out, err := Render(TargetClash, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(out), "proxies: []\n") {
		t.Fatalf("empty proxies should render as []:\n%s", out)
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(TargetClash, nil)
	var re *RenderError
	if !errors.As(err, &re) || re.AppError.Code != "INVALID_ARGUMENT" {
		t.Fatalf("nil config: got %v", err)
	}

	_, err = Render(Target("surge"), &model.RoutingConfig{})
	if !errors.As(err, &re) || re.AppError.Code != "UNSUPPORTED_TARGET" {
		t.Fatalf("unknown target: got %v", err)
	}

	cfg := &model.RoutingConfig{Proxies: []model.Node{{Name: "a", Params: map[string]any{"name": "a"}}}}
	_, err = Render(TargetClash, cfg)
	if !errors.As(err, &re) || re.AppError.Code != "INVALID_ARGUMENT" {
		t.Fatalf("missing type: got %v", err)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"", TargetClash, false},
		{"clash", TargetClash, false},
		{"Mihomo", TargetClash, false},
		{"json", TargetJSON, false},
		{"surge", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTarget(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseTarget(%q)=%q, want=%q", tt.in, got, tt.want)
		}
	}
}
