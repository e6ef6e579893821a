// Package sub decodes subscription bodies into nodes.
package sub

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/clash-override/internal/model"
)

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

// Format is the detected encoding of a subscription body.
type Format string

const (
	FormatClash  Format = "clash"  // YAML document with a "proxies" list
	FormatJSON   Format = "json"   // JSON or JSONC: an array of proxies or {"proxies": [...]}
	FormatSSList Format = "ss"     // ss:// URIs, one per line
	FormatBase64 Format = "base64" // base64 of an ss:// list
)

// Detect guesses the format of content:
//  1. a leading '[' or '{' (after comments) means JSON
//  2. a "proxies:" key means Clash YAML
//  3. a "ss://" substring means a raw URI list
//  4. anything else is treated as base64
func Detect(content string) Format {
	s := strings.TrimSpace(stripUTF8BOM(content))
	first := firstSignificantLine(s)
	switch {
	case strings.HasPrefix(first, "[") || strings.HasPrefix(first, "{"):
		return FormatJSON
	case hasProxiesKey(s):
		return FormatClash
	case strings.Contains(s, "ss://"):
		return FormatSSList
	default:
		return FormatBase64
	}
}

// Parse decodes a subscription body. An empty result is an error: a
// subscription that yields no nodes is almost always a wrong URL or an
// expired account.
//
// stage is always "parse_sub".
func Parse(sourceURL string, content string) ([]model.Node, error) {
	s := strings.TrimSpace(stripUTF8BOM(content))
	if s == "" {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅内容为空", "", nil)
	}

	var (
		nodes []model.Node
		err   error
	)
	switch Detect(s) {
	case FormatJSON:
		nodes, err = parseJSON(sourceURL, s)
	case FormatClash:
		nodes, err = parseClash(sourceURL, s)
	case FormatSSList:
		nodes, err = parseSSList(sourceURL, s)
	default:
		decoded, derr := decodeSubscriptionBase64(s)
		if derr != nil {
			return nil, newParseError(sourceURL, 0, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码失败", "", derr)
		}
		decoded = strings.TrimSpace(stripUTF8BOM(decoded))
		if decoded == "" {
			return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅内容为空", "", nil)
		}
		if Detect(decoded) == FormatClash {
			nodes, err = parseClash(sourceURL, decoded)
		} else {
			nodes, err = parseSSList(sourceURL, decoded)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅中没有任何可用节点", "", nil)
	}
	return nodes, nil
}

func firstSignificantLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

func hasProxiesKey(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimRight(line, " \r"), "proxies:") {
			return true
		}
	}
	return false
}

func decodeSubscriptionBase64(s string) (string, error) {
	b, err := decodeB64ToBytes(removeSpaceTabCRLF(s))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded subscription is not valid utf-8")
	}
	return string(b), nil
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
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

func newParseError(sourceURL string, lineNo int, snippet string, code string, message string, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_sub",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
