package pipeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/clash-override/internal/compiler"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/sirupsen/logrus"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func node(name string) model.Node {
	return model.Node{Name: name, Params: map[string]any{
		"name": name, "type": "ss", "server": "example.com", "port": 8388,
		"cipher": "aes-128-gcm", "password": "x",
	}}
}

func names(cfg *model.RoutingConfig) []string {
	out := make([]string, 0, len(cfg.Proxies))
	for _, n := range cfg.Proxies {
		out = append(out, n.Name)
	}
	return out
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return l
}

func TestRun_PlainNodes(t *testing.T) {
	res, err := Run([]Source{{URL: "https://a.example/sub", Nodes: []model.Node{node("香港 01"), node("官网 a.example")}}}, Options{Now: now, Logger: quiet()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := strings.Join(names(res.Config), ",")
	if got != "香港 01" {
		t.Fatalf("proxies=%q, want=%q", got, "香港 01")
	}
	if res.UserInfo != "" {
		t.Fatalf("UserInfo=%q, want empty", res.UserInfo)
	}
}

func TestRun_InfoAndStamp(t *testing.T) {
	srcs := []Source{
		{URL: "https://a.example/sub", Provider: "A", Nodes: []model.Node{node("香港 01")}, UserInfo: "upload=0; download=1073741824; total=2147483648"},
		{URL: "https://b.example/sub", Provider: "B", Nodes: []model.Node{node("香港 01")}, UserInfo: "upload=1073741824; download=0; total=2147483648"},
	}
	res, err := Run(srcs, Options{Info: true, Stamp: true, Now: now, Logger: quiet()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"Info-更新于 2025-03-10 12:00",
		"Info-总览 | 总流量: 2 GB / 4 GB",
		"Info-A | 流量: 1 GB / 2 GB",
		"[A] 香港 01",
		"Info-B | 流量: 1 GB / 2 GB",
		"[B] 香港 01",
	}
	if got := names(res.Config); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("proxies=%q\nwant=%q", got, want)
	}
	if got, want := res.UserInfo, "upload=1073741824; download=1073741824; total=4294967296"; got != want {
		t.Fatalf("UserInfo=%q, want=%q", got, want)
	}
}

func TestRun_NameCollisionsAreFixed(t *testing.T) {
	res, err := Run([]Source{
		{Nodes: []model.Node{node("香港 01"), node(compiler.GroupSelect)}},
		{Nodes: []model.Node{node("香港 01")}},
	}, Options{Now: now, Logger: quiet()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "香港 01,节点选择-2,香港 01-2"
	if got := strings.Join(names(res.Config), ","); got != want {
		t.Fatalf("proxies=%q, want=%q", got, want)
	}
}

func TestRun_BadUserInfoIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	res, err := Run([]Source{{
		URL:      "https://a.example/api/v1/client/subscribe?token=secret",
		Nodes:    []model.Node{node("香港 01")},
		UserInfo: "garbage",
	}}, Options{Info: true, Now: now, Logger: log})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.UserInfo != "" {
		t.Fatalf("UserInfo=%q, want empty", res.UserInfo)
	}
	out := buf.String()
	if !strings.Contains(out, "ignoring subscription-userinfo") || !strings.Contains(out, "https://a.example") {
		t.Fatalf("log=%q", out)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("log leaks the subscription token: %q", out)
	}
}

func TestRedactURL(t *testing.T) {
	tests := map[string]string{
		"https://a.example/sub?token=x": "https://a.example",
		"http://a.example:8080":         "http://a.example:8080",
		"http://a.example?x=1":          "http://a.example",
		"request":                       "(local)",
	}
	for in, want := range tests {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q)=%q, want=%q", in, got, want)
		}
	}
}
