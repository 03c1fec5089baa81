package util

import (
	"strings"
	"testing"
)

func TestTrimHelpers(t *testing.T) {
	if got := TrimAndLower("  UAT "); got != "uat" {
		t.Fatalf("TrimAndLower() = %q", got)
	}
	if v, ok := TrimEmptyCheck("   "); ok || v != "" {
		t.Fatalf("TrimEmptyCheck(blank) = %q, %v", v, ok)
	}
	if v, ok := TrimEmptyCheck(" x "); !ok || v != "x" {
		t.Fatalf("TrimEmptyCheck(x) = %q, %v", v, ok)
	}
	if got := TrimWithDefault(" ", "dev"); got != "dev" {
		t.Fatalf("TrimWithDefault() = %q", got)
	}
	if got := TrimSpaceFields(" a", "b ", ""); strings.Join(got, ",") != "a,b," {
		t.Fatalf("TrimSpaceFields() = %q", got)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{" UAT ", "prod", "uat", ""}, "uat,prod"},
		{[]string{"  "}, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(NormalizeTags(tt.in), ","); got != tt.want {
			t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	tags := []string{"uat", "Prod"}
	if !ContainsFold(tags, " PROD ") || !ContainsFold(tags, "uat") {
		t.Fatal("expected match")
	}
	if ContainsFold(tags, "dev") || ContainsFold(nil, "dev") {
		t.Fatal("unexpected match")
	}
}
