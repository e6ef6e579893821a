package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/clash-override/internal/compiler"
	"github.com/John-Robertt/clash-override/internal/fetch"
	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/John-Robertt/clash-override/internal/pipeline"
	"github.com/John-Robertt/clash-override/internal/render"
	"github.com/John-Robertt/clash-override/internal/sub"
	"github.com/John-Robertt/clash-override/internal/subinfo"
)

const maxConvertBody = 5 * 1024 * 1024

type convertRequest struct {
	Target    render.Target
	Flags     compiler.Flags
	Subs      []string
	Providers []string // positional, one per sub; may be shorter
	FileName  string
	Info      bool
	Stamp     bool
	InfoOpt   subinfo.InfoOptions
}

func (r convertRequest) provider(i int) string {
	if i < len(r.Providers) {
		return r.Providers[i]
	}
	return ""
}

type convertRequestJSON struct {
	// Exactly one of Nodes (an array of mihomo proxy objects) or Content
	// (a raw subscription body in any supported format) must be set.
	Nodes    json.RawMessage `json:"nodes"`
	Content  string          `json:"content"`
	UserInfo string          `json:"userinfo"`
	Provider string          `json:"provider"`
	Flags    map[string]any  `json:"flags"`
	Target   string          `json:"target"`
	FileName string          `json:"fileName"`
	Info     *bool           `json:"info"`
	Stamp    *bool           `json:"stamp"`
}

func (s *server) handleSub(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubGET(r, s.opt.MaxSubs)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	metricsAddSubscriptions(len(req.Subs))
	fetched, err := s.fetcher.FetchAll(ctx, fetch.KindSubscription, req.Subs)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	sources := make([]pipeline.Source, 0, len(fetched))
	for i, f := range fetched {
		nodes, err := sub.Parse(f.URL, f.Body)
		if err != nil {
			writeErrorFromErr(w, err)
			return
		}
		sources = append(sources, pipeline.Source{
			URL:      f.URL,
			Nodes:    nodes,
			Provider: req.provider(i),
			UserInfo: f.UserInfo,
		})
	}
	s.respond(w, req, sources)
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, src, err := parseConvertPOST(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	s.respond(w, req, []pipeline.Source{src})
}

func (s *server) respond(w http.ResponseWriter, req convertRequest, sources []pipeline.Source) {
	res, err := pipeline.Run(sources, pipeline.Options{
		Flags:       req.Flags,
		Info:        req.Info,
		Stamp:       req.Stamp,
		InfoOptions: req.InfoOpt,
		Catalog:     s.opt.Catalog,
		Now:         s.opt.Now(),
		Logger:      s.opt.Logger,
	})
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	body, err := render.Render(req.Target, res.Config)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := setAttachmentHeaders(w, req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if res.UserInfo != "" {
		w.Header().Set(subinfo.HeaderName, res.UserInfo)
	}
	w.Header().Set("Profile-Update-Interval", "24")
	w.Header().Set("Content-Type", req.Target.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	metricsIncConversion(string(req.Target), len(res.Config.Proxies))
}

var subQueryKeys = map[string]struct{}{
	"sub": {}, "target": {}, "fileName": {}, "provider": {}, "info": {}, "stamp": {},
	"remaining": {}, "hideExpire": {}, "noReset": {}, "resetDay": {}, "startDate": {}, "cycleDays": {},
	compiler.KeyLoadBalance: {}, compiler.KeyLanding: {}, compiler.KeyIPv6: {},
	compiler.KeyFullConfig: {}, compiler.KeyKeepAlive: {},
}

func parseSubGET(r *http.Request, maxSubs int) (convertRequest, error) {
	q := r.URL.Query()
	for key := range q {
		if _, ok := subQueryKeys[key]; !ok {
			return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("不支持的 query 参数：%s", key), "")
		}
	}

	subs := q["sub"]
	if len(subs) == 0 {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "缺少 sub 参数", "expected: sub=<url>")
	}
	if len(subs) > maxSubs {
		return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("sub 参数过多（>%d）", maxSubs), "")
	}
	req := convertRequest{Flags: compiler.FlagsFromValues(q)}
	providers := q["provider"]
	seen := make(map[string]struct{}, len(subs))
	for i, s := range subs {
		s = strings.TrimSpace(s)
		if s == "" {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "sub 不能为空", "")
		}
		// A repeated sub would only duplicate every node name.
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		req.Subs = append(req.Subs, s)
		p := ""
		if i < len(providers) {
			p = strings.TrimSpace(providers[i])
		}
		req.Providers = append(req.Providers, p)
	}

	targetStr, err := singleQuery(q, "target", false)
	if err != nil {
		return convertRequest{}, err
	}
	if req.Target, err = render.ParseTarget(targetStr); err != nil {
		return convertRequest{}, err
	}
	if req.FileName, err = singleQuery(q, "fileName", false); err != nil {
		return convertRequest{}, err
	}

	req.Info = boolQuery(q, "info", true)
	req.Stamp = boolQuery(q, "stamp", true)
	req.InfoOpt = subinfo.InfoOptions{
		ShowRemaining: boolQuery(q, "remaining", false),
		HideExpire:    boolQuery(q, "hideExpire", false),
		NoReset:       boolQuery(q, "noReset", false),
		StartDate:     strings.TrimSpace(q.Get("startDate")),
	}
	if req.InfoOpt.ResetDay, err = intQuery(q, "resetDay", 0, 31); err != nil {
		return convertRequest{}, err
	}
	if req.InfoOpt.CycleDays, err = intQuery(q, "cycleDays", 0, 3660); err != nil {
		return convertRequest{}, err
	}
	return req, nil
}

func parseConvertPOST(r *http.Request) (convertRequest, pipeline.Source, error) {
	var body convertRequestJSON
	dec := json.NewDecoder(io.LimitReader(r.Body, maxConvertBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return convertRequest{}, pipeline.Source{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return convertRequest{}, pipeline.Source{}, requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return convertRequest{}, pipeline.Source{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}

	hasNodes := len(body.Nodes) > 0 && string(body.Nodes) != "null"
	hasContent := strings.TrimSpace(body.Content) != ""
	if hasNodes == hasContent {
		return convertRequest{}, pipeline.Source{}, requestError("INVALID_ARGUMENT", "nodes 与 content 必须且只能提供一个", "")
	}
	content := body.Content
	if hasNodes {
		content = string(body.Nodes)
	}
	// An explicit empty node array still compiles (no region groups);
	// sub.Parse would reject it as an empty subscription.
	var nodes []model.Node
	if !hasNodes || strings.TrimSpace(content) != "[]" {
		var err error
		if nodes, err = sub.Parse("request", content); err != nil {
			return convertRequest{}, pipeline.Source{}, err
		}
	}

	target, err := render.ParseTarget(body.Target)
	if err != nil {
		return convertRequest{}, pipeline.Source{}, err
	}
	req := convertRequest{
		Target:   target,
		Flags:    compiler.FlagsFromMap(body.Flags),
		FileName: body.FileName,
		Info:     body.Info == nil || *body.Info,
		Stamp:    body.Stamp == nil || *body.Stamp,
	}
	src := pipeline.Source{
		URL:      "request",
		Nodes:    nodes,
		Provider: strings.TrimSpace(body.Provider),
		UserInfo: body.UserInfo,
	}
	return req, src, nil
}

func singleQuery(q url.Values, key string, required bool) (string, error) {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		if required {
			return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("缺少 %s 参数", key), "")
		}
		return "", nil
	}
	if len(values) != 1 {
		return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数只能出现一次", key), "")
	}
	return values[0], nil
}

// boolQuery is like compiler.ParseBool but lets an absent key default to def.
func boolQuery(q url.Values, key string, def bool) bool {
	if _, ok := q[key]; !ok {
		return def
	}
	return compiler.ParseBool(q.Get(key))
}

func intQuery(q url.Values, key string, lo, hi int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数不合法", key), fmt.Sprintf("expected: integer in [%d, %d]", lo, hi))
	}
	return n, nil
}
