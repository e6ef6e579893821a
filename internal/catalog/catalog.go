package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/John-Robertt/clash-override/internal/model"
	"github.com/John-Robertt/clash-override/internal/rules"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML string

// DefaultSource is the source name reported for errors in the embedded catalog.
const DefaultSource = "embedded:default.yaml"

// Region is one entry of the static region table.
type Region struct {
	ID      string  `yaml:"id"`
	Pattern Pattern `yaml:"pattern"`
	Icon    string  `yaml:"icon"`
}

// Filters are the name markers that take a node out of region counting.
type Filters struct {
	Landing    Pattern `yaml:"landing"`
	LowCost    Pattern `yaml:"low-cost"`
	Info       Pattern `yaml:"info"`
	UpdatedAt  Pattern `yaml:"updated-at"`
	SelfHosted Pattern `yaml:"self-hosted"`
}

type Probes struct {
	Region   model.Probe `yaml:"region"`
	Fallback model.Probe `yaml:"fallback"`
	LowCost  model.Probe `yaml:"low-cost"`
}

// Catalog is the immutable input every compilation shares. Nothing mutates a
// Catalog after Parse returns, so one value may serve concurrent requests.
type Catalog struct {
	Regions       []Region
	Filters       Filters
	Probes        Probes
	RuleProviders []model.RuleProvider
	Rules         []model.Rule
	Sniffer       model.Sniffer
	DNS           model.DNS
	Runtime       model.Runtime
	GeodataMode   bool
	GeoxURL       *model.GeoxURL
}

type document struct {
	Regions       []Region             `yaml:"regions"`
	Filters       Filters              `yaml:"filters"`
	Probes        Probes               `yaml:"probes"`
	RuleProviders []model.RuleProvider `yaml:"rule-providers"`
	Rules         []string             `yaml:"rules"`
	Sniffer       model.Sniffer        `yaml:"sniffer"`
	DNS           model.DNS            `yaml:"dns"`
	Runtime       model.Runtime        `yaml:"runtime"`
	GeodataMode   bool                 `yaml:"geodata-mode"`
	GeoxURL       *model.GeoxURL       `yaml:"geox-url"`
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(DefaultSource, "")
})

// Default returns the embedded catalog. It panics if the embedded document is
// invalid, which the package tests rule out.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// LoadFile reads an override file and applies it on top of the defaults.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "CATALOG_READ_ERROR",
				Message: "无法读取 catalog 文件",
				Stage:   "parse_catalog",
				URL:     path,
			},
			Cause: err,
		}
	}
	return Parse(path, string(b))
}

// Parse decodes content on top of the embedded defaults and validates the
// result. Top-level sections present in content replace the default section;
// within a mapping section only the keys given are replaced. Lists are always
// replaced whole. Unknown keys are rejected.
//
// stage is always "parse_catalog".
func Parse(sourceURL string, content string) (*Catalog, error) {
	var doc document
	if err := yamlDecodeStrict(defaultYAML, &doc); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "CATALOG_PARSE_ERROR",
				Message: "内置 catalog 解析失败",
				Stage:   "parse_catalog",
				URL:     DefaultSource,
			},
			Cause: err,
		}
	}
	if strings.TrimSpace(content) != "" {
		if err := yamlDecodeStrict(content, &doc); err != nil {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "CATALOG_PARSE_ERROR",
					Message: "catalog YAML 解析失败",
					Stage:   "parse_catalog",
					URL:     sourceURL,
					Snippet: truncateSnippet(content, 200),
				},
				Cause: err,
			}
		}
	}
	return build(sourceURL, &doc)
}

func build(sourceURL string, doc *document) (*Catalog, error) {
	fail := func(msg, snippet string, cause error) error {
		return &ParseError{
			AppError: model.AppError{
				Code:    "CATALOG_VALIDATE_ERROR",
				Message: msg,
				Stage:   "parse_catalog",
				URL:     sourceURL,
				Snippet: snippet,
			},
			Cause: cause,
		}
	}

	seen := make(map[string]struct{}, len(doc.Regions))
	for i, r := range doc.Regions {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fail(fmt.Sprintf("regions[%d].id 不能为空", i), "", nil)
		}
		if _, ok := seen[id]; ok {
			return nil, fail(fmt.Sprintf("region 重复：%s", id), id, nil)
		}
		seen[id] = struct{}{}
		if r.Pattern.IsZero() {
			return nil, fail(fmt.Sprintf("region %s 缺少 pattern", id), id, nil)
		}
		doc.Regions[i].ID = id
	}

	for name, p := range map[string]Pattern{
		"landing":     doc.Filters.Landing,
		"low-cost":    doc.Filters.LowCost,
		"info":        doc.Filters.Info,
		"updated-at":  doc.Filters.UpdatedAt,
		"self-hosted": doc.Filters.SelfHosted,
	} {
		if p.IsZero() {
			return nil, fail(fmt.Sprintf("filters.%s 不能为空", name), "", nil)
		}
	}

	for name, p := range map[string]model.Probe{
		"region":   doc.Probes.Region,
		"fallback": doc.Probes.Fallback,
		"low-cost": doc.Probes.LowCost,
	} {
		if err := validateHTTPURL(p.URL); err != nil {
			return nil, fail(fmt.Sprintf("probes.%s.url 不合法", name), p.URL, err)
		}
		if p.IntervalSec < 0 || p.ToleranceMS < 0 {
			return nil, fail(fmt.Sprintf("probes.%s 的 interval/tolerance 不能为负数", name), "", nil)
		}
	}

	providers := make(map[string]struct{}, len(doc.RuleProviders))
	for i, rp := range doc.RuleProviders {
		if rp.Name == "" {
			return nil, fail(fmt.Sprintf("rule-providers[%d].name 不能为空", i), "", nil)
		}
		if _, ok := providers[rp.Name]; ok {
			return nil, fail(fmt.Sprintf("rule-provider 重复：%s", rp.Name), rp.Name, nil)
		}
		providers[rp.Name] = struct{}{}
		if rp.Type == "http" {
			if err := validateHTTPURL(rp.URL); err != nil {
				return nil, fail(fmt.Sprintf("rule-provider %s 的 url 不合法", rp.Name), rp.URL, err)
			}
		}
	}

	rs, err := rules.ParseRuleList(sourceURL, doc.Rules)
	if err != nil {
		return nil, err
	}
	for i, r := range rs {
		if r.Type != "RULE-SET" {
			continue
		}
		if _, ok := providers[r.Value]; !ok {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "CATALOG_VALIDATE_ERROR",
					Message: fmt.Sprintf("RULE-SET 引用了未声明的 rule-provider：%s", r.Value),
					Stage:   "parse_catalog",
					URL:     sourceURL,
					Line:    i + 1,
					Snippet: r.String(),
					Hint:    "declare it under rule-providers",
				},
			}
		}
	}

	if doc.GeoxURL != nil {
		for _, u := range []string{doc.GeoxURL.GeoIP, doc.GeoxURL.GeoSite, doc.GeoxURL.MMDB} {
			if err := validateHTTPURL(u); err != nil {
				return nil, fail("geox-url 不合法", u, err)
			}
		}
	}

	return &Catalog{
		Regions:       doc.Regions,
		Filters:       doc.Filters,
		Probes:        doc.Probes,
		RuleProviders: doc.RuleProviders,
		Rules:         rs,
		Sniffer:       doc.Sniffer,
		DNS:           doc.DNS,
		Runtime:       doc.Runtime,
		GeodataMode:   doc.GeodataMode,
		GeoxURL:       doc.GeoxURL,
	}, nil
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u == nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
