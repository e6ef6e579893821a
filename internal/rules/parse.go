package rules

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/John-Robertt/clash-override/internal/model"
)

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

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

// ParseRuleList parses an ordered rule list (one rule per entry) and checks
// that it ends with exactly one MATCH.
//
// stage is always "parse_catalog": rule lists only come from the catalog.
func ParseRuleList(sourceURL string, lines []string) ([]model.Rule, error) {
	out := make([]model.Rule, 0, len(lines))
	for i, raw := range lines {
		r, err := ParseRule(raw)
		if err != nil {
			var rerr *RuleError
			if errors.As(err, &rerr) {
				return nil, &ParseError{
					AppError: model.AppError{
						Code:    rerr.Code,
						Message: rerr.Message,
						Stage:   "parse_catalog",
						URL:     sourceURL,
						Line:    i + 1,
						Snippet: truncateSnippet(raw, 200),
						Hint:    rerr.Hint,
					},
					Cause: rerr.Cause,
				}
			}
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "RULE_PARSE_ERROR",
					Message: "invalid rule line",
					Stage:   "parse_catalog",
					URL:     sourceURL,
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
				},
				Cause: err,
			}
		}
		out = append(out, r)
	}

	matchCount := 0
	for _, r := range out {
		if r.Type == "MATCH" {
			matchCount++
		}
	}
	if matchCount != 1 || out[len(out)-1].Type != "MATCH" {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("兜底规则 MATCH 必须唯一且位于最后（got=%d）", matchCount),
				Stage:   "parse_catalog",
				URL:     sourceURL,
				Hint:    "add at end of rules: MATCH,直连",
			},
		}
	}
	return out, nil
}

// ParseRule parses a single mihomo rule line. ACTION is required.
func ParseRule(line string) (model.Rule, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is empty"}
	}
	if strings.HasPrefix(line, "#") {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is comment"}
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则类型不能为空"}
	}

	typ := strings.ToUpper(parts[0])
	switch typ {
	case "MATCH":
		if len(parts) != 2 || parts[1] == "" {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: "MATCH 规则必须是 MATCH,<ACTION>",
			}
		}
		return model.Rule{Type: "MATCH", Action: parts[1]}, nil
	case "DOMAIN", "DOMAIN-SUFFIX", "DOMAIN-KEYWORD", "DOMAIN-REGEX", "GEOSITE", "PROCESS-NAME":
		return parseTriple(typ, parts, false, nil)
	case "GEOIP", "RULE-SET":
		return parseTriple(typ, parts, true, nil)
	case "IP-CIDR", "IP-CIDR6", "SRC-IP-CIDR":
		return parseTriple(typ, parts, true, validateCIDR)
	case "DST-PORT", "SRC-PORT":
		return parseTriple(typ, parts, false, validatePort)
	default:
		return model.Rule{}, &RuleError{
			Code:    "UNSUPPORTED_RULE_TYPE",
			Message: fmt.Sprintf("不支持的规则类型：%s", typ),
		}
	}
}

func parseTriple(typ string, parts []string, allowNoResolve bool, validate func(string) error) (model.Rule, error) {
	hint := "expected: " + typ + ",VALUE,ACTION"
	if allowNoResolve {
		hint += "[,no-resolve]"
	}

	switch len(parts) {
	case 2:
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则缺少 ACTION",
			Hint:    hint,
		}
	case 3, 4:
	default:
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则字段数量不合法",
			Hint:    hint,
		}
	}

	if parts[1] == "" || parts[2] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则 VALUE/ACTION 不能为空", Hint: hint}
	}
	if strings.EqualFold(parts[2], "no-resolve") {
		// Ambiguous: missing action but has option.
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则缺少 ACTION（不允许仅写 no-resolve）",
			Hint:    hint,
		}
	}
	if validate != nil {
		if err := validate(parts[1]); err != nil {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 的 VALUE 不合法", typ),
				Hint:    hint,
				Cause:   err,
			}
		}
	}

	r := model.Rule{Type: typ, Value: parts[1], Action: parts[2]}
	if len(parts) == 4 {
		if !allowNoResolve || !strings.EqualFold(parts[3], "no-resolve") {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 不支持可选项：%s", typ, parts[3]),
				Hint:    hint,
			}
		}
		r.NoResolve = true
	}
	return r, nil
}

func validateCIDR(s string) error {
	_, _, err := net.ParseCIDR(strings.TrimSpace(s))
	return err
}

// validatePort accepts "22", "80/443" and "1000-2000" forms.
func validatePort(s string) error {
	for _, seg := range strings.Split(s, "/") {
		lo, hi, isRange := strings.Cut(seg, "-")
		if err := checkPort(lo); err != nil {
			return err
		}
		if isRange {
			if err := checkPort(hi); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if n < 0 || n > 65535 {
		return errors.New("port out of range")
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
