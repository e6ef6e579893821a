package compiler

import (
	"net/url"
	"strings"
)

// Flags are the caller-supplied switches of one compilation.
type Flags struct {
	LoadBalance bool // region groups become load-balance instead of url-test
	Landing     bool // emit 前置代理/落地节点 and let ISP nodes into region groups
	IPv6        bool
	FullConfig  bool // include runtime settings so the kernel can start from the output alone
	KeepAlive   bool
}

// Query/argument keys understood by FlagsFromValues and FlagsFromMap.
const (
	KeyLoadBalance = "loadbalance"
	KeyLanding     = "landing"
	KeyIPv6        = "ipv6"
	KeyFullConfig  = "full"
	KeyKeepAlive   = "keepalive"
)

// ParseBool coerces a loosely typed argument: a bool is used as is, a string
// is true when it equals "true" (any case) or "1". Everything else is false.
func ParseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.ToLower(x) == "true" || x == "1"
	default:
		return false
	}
}

// FlagsFromMap reads flags from a decoded JSON object.
func FlagsFromMap(m map[string]any) Flags {
	return Flags{
		LoadBalance: ParseBool(m[KeyLoadBalance]),
		Landing:     ParseBool(m[KeyLanding]),
		IPv6:        ParseBool(m[KeyIPv6]),
		FullConfig:  ParseBool(m[KeyFullConfig]),
		KeepAlive:   ParseBool(m[KeyKeepAlive]),
	}
}

// FlagsFromValues reads flags from URL query parameters. An absent key is
// false; a repeated key uses its first value.
func FlagsFromValues(q url.Values) Flags {
	get := func(k string) any {
		if _, ok := q[k]; !ok {
			return nil
		}
		return q.Get(k)
	}
	return Flags{
		LoadBalance: ParseBool(get(KeyLoadBalance)),
		Landing:     ParseBool(get(KeyLanding)),
		IPv6:        ParseBool(get(KeyIPv6)),
		FullConfig:  ParseBool(get(KeyFullConfig)),
		KeepAlive:   ParseBool(get(KeyKeepAlive)),
	}
}
