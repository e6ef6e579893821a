package sub

import (
	"encoding/base64"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/clash-override/internal/model"
)

// parseSSList parses one ss:// URI per line. Blank lines and "#" comments are
// skipped; any other scheme is rejected with its line number.
func parseSSList(sourceURL, raw string) ([]model.Node, error) {
	lines := strings.Split(raw, "\n")
	out := make([]model.Node, 0, len(lines))
	for i, line := range lines {
		orig := line
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "ss://") {
			return nil, newParseError(sourceURL, i+1, truncateSnippet(orig, 200), "SUB_UNSUPPORTED_SCHEME", "URI 列表仅支持 ss:// 协议", "use a Clash YAML or JSON subscription for other protocols", nil)
		}
		n, err := parseSSURI(sourceURL, i+1, line)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

type ssEndpoint struct {
	name       string
	server     string
	port       int
	cipher     string
	password   string
	plugin     string
	pluginOpts map[string]any
}

// node maps the endpoint to mihomo's "ss" proxy fields.
func (e ssEndpoint) node() model.Node {
	params := map[string]any{
		"name":     e.name,
		"type":     "ss",
		"server":   e.server,
		"port":     e.port,
		"cipher":   e.cipher,
		"password": e.password,
		"udp":      true,
	}
	if e.plugin != "" {
		params["plugin"] = e.plugin
		if len(e.pluginOpts) > 0 {
			params["plugin-opts"] = e.pluginOpts
		}
	}
	return model.Node{Name: e.name, Params: params}
}

// parseSSURI accepts both SIP002 (ss://b64(method:password)@host:port) and the
// legacy ss://b64(method:password@host:port) forms.
func parseSSURI(sourceURL string, lineNo int, s string) (model.Node, error) {
	fail := func(msg string, cause error) (model.Node, error) {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", msg, "", cause)
	}

	withoutFrag, frag, hasFrag := strings.Cut(s, "#")
	var e ssEndpoint
	if hasFrag {
		decoded, err := url.PathUnescape(frag)
		if err != nil {
			return fail("节点名称 URL 解码失败", err)
		}
		e.name = strings.TrimSpace(decoded)
		if strings.ContainsAny(e.name, "\r\n\x00") {
			return fail("节点名称包含非法控制字符", nil)
		}
	}

	withoutQuery, query, hasQuery := strings.Cut(withoutFrag, "?")
	if hasQuery && query != "" {
		plugin, opts, err := parsePluginQuery(query)
		if err != nil {
			return fail("plugin 参数不合法", err)
		}
		e.plugin, e.pluginOpts = plugin, opts
	}

	rest := strings.TrimPrefix(withoutQuery, "ss://")
	if rest == "" {
		return fail("ss:// 后缺少内容", nil)
	}

	var hostPort string
	if userB64, hp, ok := strings.Cut(rest, "@"); ok {
		if userB64 == "" || hp == "" {
			return fail("ss uri 格式不合法", nil)
		}
		if idx := strings.IndexByte(hp, '/'); idx >= 0 {
			if hp[idx:] != "/" {
				return fail("ss uri path 不支持（仅允许空或 /）", nil)
			}
			hp = hp[:idx]
		}
		decoded, err := decodeB64ToString(userB64)
		if err != nil {
			// SIP002 allows plain "method:password" for AEAD-2022 ciphers.
			unescaped, uerr := url.PathUnescape(userB64)
			if uerr != nil || !strings.Contains(unescaped, ":") {
				return fail("ss userinfo base64 解码失败", err)
			}
			decoded = unescaped
		}
		if e.cipher, e.password, err = splitMethodPassword(decoded); err != nil {
			return fail("ss userinfo 不合法", err)
		}
		hostPort = hp
	} else {
		decoded, err := decodeB64ToString(rest)
		if err != nil {
			return fail("ss base64 解码失败", err)
		}
		at := strings.LastIndex(decoded, "@")
		if at < 0 {
			return fail("ss base64 解码结果缺少 @ 分隔符", nil)
		}
		if e.cipher, e.password, err = splitMethodPassword(decoded[:at]); err != nil {
			return fail("ss base64 解码结果缺少 cipher:password", err)
		}
		hostPort = decoded[at+1:]
	}

	var err error
	if e.server, e.port, err = parseHostPort(hostPort); err != nil {
		return fail("服务器地址或端口不合法", err)
	}
	if e.name == "" {
		e.name = net.JoinHostPort(e.server, strconv.Itoa(e.port))
	}
	return e.node(), nil
}

// parsePluginQuery reads the SIP002 "plugin" parameter. Only '&' separates
// parameters because the plugin value itself uses ';'.
func parsePluginQuery(query string) (string, map[string]any, error) {
	var value *string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		kRaw, vRaw, ok := strings.Cut(part, "=")
		if !ok {
			return "", nil, errors.New("query must be key=value")
		}
		k, err := url.QueryUnescape(kRaw)
		if err != nil {
			return "", nil, err
		}
		v, err := url.QueryUnescape(vRaw)
		if err != nil {
			return "", nil, err
		}
		if k != "plugin" {
			// Clients add their own markers (e.g. "group"); they do not affect the endpoint.
			continue
		}
		if value != nil {
			return "", nil, errors.New("duplicate plugin parameter")
		}
		value = &v
	}
	if value == nil {
		return "", nil, nil
	}

	segs := strings.Split(*value, ";")
	name := strings.TrimSpace(segs[0])
	if name == "" {
		return "", nil, errors.New("empty plugin name")
	}
	opts := map[string]any{}
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if strings.TrimSpace(k) == "" {
			return "", nil, errors.New("empty plugin option key")
		}
		if !ok {
			opts[k] = true
			continue
		}
		opts[k] = v
	}

	// mihomo calls simple-obfs "obfs" and names its options mode/host.
	if name == "simple-obfs" || name == "obfs-local" {
		name = "obfs"
		if v, ok := opts["obfs"]; ok {
			opts["mode"] = v
			delete(opts, "obfs")
		}
		if v, ok := opts["obfs-host"]; ok {
			opts["host"] = v
			delete(opts, "obfs-host")
		}
	}
	return name, opts, nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

func splitMethodPassword(decoded string) (string, string, error) {
	if !utf8.ValidString(decoded) {
		return "", "", errors.New("method:password is not valid utf-8")
	}
	method, password, ok := strings.Cut(decoded, ":")
	method = strings.TrimSpace(method)
	password = strings.TrimSpace(password)
	if !ok || method == "" || password == "" {
		return "", "", errors.New("missing method or password")
	}
	if strings.ContainsAny(decoded, "\r\n\x00") {
		return "", "", errors.New("control chars in method/password")
	}
	return method, password, nil
}

func decodeB64ToString(s string) (string, error) {
	b, err := decodeB64ToBytes(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeB64ToBytes(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
