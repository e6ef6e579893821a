package model

import "strings"

type Rule struct {
	Type      string // e.g. "RULE-SET", "GEOSITE", "GEOIP", "DST-PORT", "MATCH"
	Value     string // provider name / site code / cidr / port
	Action    string // DIRECT/REJECT/group name
	NoResolve bool   // only meaningful for GEOIP/IP-CIDR/IP-CIDR6
}

// String renders the rule in mihomo's comma form.
func (r Rule) String() string {
	if r.Type == "MATCH" {
		return "MATCH," + r.Action
	}
	parts := []string{r.Type, r.Value, r.Action}
	if r.NoResolve {
		parts = append(parts, "no-resolve")
	}
	return strings.Join(parts, ",")
}

// IsBuiltinAction reports whether action refers to a built-in policy rather
// than a proxy group.
func IsBuiltinAction(action string) bool {
	switch action {
	case "DIRECT", "REJECT", "REJECT-DROP", "PASS", "COMPATIBLE":
		return true
	}
	return false
}
