package access

import "testing"

func TestPassIsConsumedOnce(t *testing.T) {
	var pass Pass
	if pass.Consume() {
		t.Fatalf("expected ungranted pass to be refused")
	}
	if token := pass.Grant(); token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !pass.Granted() {
		t.Fatalf("expected pass to report granted")
	}
	if !pass.Consume() {
		t.Fatalf("expected first consume to succeed")
	}
	if pass.Consume() {
		t.Fatalf("expected second consume to fail")
	}
	if pass.Granted() {
		t.Fatalf("expected pass to be disarmed")
	}
}

func TestRegrantReplacesToken(t *testing.T) {
	var pass Pass
	first := pass.Grant()
	second := pass.Grant()
	if first == second {
		t.Fatalf("expected fresh token on regrant")
	}
	if !pass.Consume() || pass.Consume() {
		t.Fatalf("regranted pass should still be single-use")
	}
}

func TestNilPassRefuses(t *testing.T) {
	var pass *Pass
	if pass.Consume() || pass.Granted() {
		t.Fatalf("nil pass must refuse")
	}
}
