package sub

import "testing"

func FuzzParse(f *testing.F) {
	seed := []string{
		"",
		"   \n",
		"# comment\nss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201\n",
		"ss://YWVzLTEyOC1nY206cGFzc3dvcmQ=@example.com:8388#A\n",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=simple-obfs%3Bobfs%3Dtls%3Bobfs-host%3Dexample.com#obfs\n",
		"ss://YWVzLTEyOC1nY206cGFzcw==@[::1]:8388#ipv6\n",
		"proxies:\n  - {name: a, type: ss, server: b, port: 1}\n",
		"[{\"name\": \"a\", \"type\": \"ss\"}]",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, content string) {
		nodes, err := Parse("https://example.com/sub", content)
		if err != nil {
			return
		}
		if len(nodes) == 0 {
			t.Fatalf("nodes is empty on nil error")
		}
		for _, n := range nodes {
			if n.Params == nil {
				t.Fatalf("nil params")
			}
			if n.Params["name"] != n.Name {
				t.Fatalf("params name=%v, want=%q", n.Params["name"], n.Name)
			}
			if typ, _ := n.Params["type"].(string); typ == "" {
				t.Fatalf("empty type")
			}
		}
	})
}
