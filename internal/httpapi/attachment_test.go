package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/John-Robertt/clash-override/internal/render"
)

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		target   render.Target
		want     string
		wantErr  bool
	}{
		{"absent", "", render.TargetClash, "", false},
		{"blank", "   ", render.TargetClash, "", false},
		{"adds yaml ext", "my", render.TargetClash, "my.yaml", false},
		{"adds json ext", "my", render.TargetJSON, "my.json", false},
		{"keeps ext", "my.yml", render.TargetClash, "my.yml", false},
		{"trailing dot is not an ext", "my.", render.TargetClash, "my..yaml", false},
		{"unicode", "机场", render.TargetClash, "机场.yaml", false},
		{"slash", "a/b", render.TargetClash, "", true},
		{"backslash", `a\b`, render.TargetClash, "", true},
		{"newline", "a\nb", render.TargetClash, "", true},
		{"too long", strings.Repeat("a", 201), render.TargetClash, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputFileName(convertRequest{FileName: tt.fileName, Target: tt.target})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("name=%q, want=%q", got, tt.want)
			}
		})
	}
}

func TestContentDispositionAttachment(t *testing.T) {
	got := contentDispositionAttachment(`我的 "配置".yaml`)
	want := `attachment; filename="我的 \"配置\".yaml"; filename*=UTF-8''%E6%88%91%E7%9A%84%20%22%E9%85%8D%E7%BD%AE%22.yaml`
	if got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestSub_FileNameHeader(t *testing.T) {
	up := newUpstream(t)
	defer up.Close()
	mux := newTestMux(Options{})

	rr := doGET(t, mux, subPath(url.Values{"fileName": {"机场"}}, up.URL+"/clash"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := `attachment; filename="机场.yaml"; filename*=UTF-8''%E6%9C%BA%E5%9C%BA.yaml`
	if got := rr.Header().Get("Content-Disposition"); got != want {
		t.Fatalf("Content-Disposition=%q, want=%q", got, want)
	}

	rr = doGET(t, mux, subPath(url.Values{"fileName": {"../x"}}, up.URL+"/clash"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("path separator status=%d, want=400", rr.Code)
	}
}
