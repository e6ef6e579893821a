package rules

import (
	"errors"
	"testing"
)

func TestParseRule_RequireAction(t *testing.T) {
	_, err := ParseRule("GEOSITE,CN")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", re.Code, "RULE_PARSE_ERROR")
	}
}

func TestParseRule_NoResolveWithoutAction_Error(t *testing.T) {
	_, err := ParseRule("GEOIP,CN,no-resolve")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", re.Code, "RULE_PARSE_ERROR")
	}
}

func TestParseRule_NoResolveOnlyWhereAllowed(t *testing.T) {
	if _, err := ParseRule("GEOSITE,CN,直连,no-resolve"); err == nil {
		t.Fatalf("expected error for no-resolve on GEOSITE")
	}
	r, err := ParseRule("GEOIP,TELEGRAM,Telegram,no-resolve")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !r.NoResolve || r.Action != "Telegram" || r.Value != "TELEGRAM" {
		t.Fatalf("rule=%+v", r)
	}
}

func TestParseRule_DstPort(t *testing.T) {
	for _, ok := range []string{"DST-PORT,22,SSH(22端口)", "DST-PORT,80/443,DIRECT", "DST-PORT,1000-2000,DIRECT"} {
		if _, err := ParseRule(ok); err != nil {
			t.Fatalf("ParseRule(%q) unexpected err: %v", ok, err)
		}
	}
	if _, err := ParseRule("DST-PORT,70000,DIRECT"); err == nil {
		t.Fatalf("expected error for port out of range")
	}
}

func TestParseRule_UnsupportedType(t *testing.T) {
	_, err := ParseRule("USER-AGENT,curl*,DIRECT")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "UNSUPPORTED_RULE_TYPE" {
		t.Fatalf("code=%q, want=%q", re.Code, "UNSUPPORTED_RULE_TYPE")
	}
}

func TestParseRuleList_MatchMustBeLast(t *testing.T) {
	_, err := ParseRuleList("catalog.yaml", []string{"MATCH,直连", "GEOIP,CN,直连"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Stage != "parse_catalog" {
		t.Fatalf("stage=%q, want=%q", pe.AppError.Stage, "parse_catalog")
	}

	if _, err := ParseRuleList("catalog.yaml", nil); err == nil {
		t.Fatalf("expected error for empty rule list")
	}
}

func TestParseRuleList_LineNumber(t *testing.T) {
	_, err := ParseRuleList("catalog.yaml", []string{"GEOIP,CN,直连", "BOGUS,x,y", "MATCH,直连"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Line != 2 {
		t.Fatalf("line=%d, want=2", pe.AppError.Line)
	}
	if pe.AppError.Code != "UNSUPPORTED_RULE_TYPE" {
		t.Fatalf("code=%q, want=%q", pe.AppError.Code, "UNSUPPORTED_RULE_TYPE")
	}
}
