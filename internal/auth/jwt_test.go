package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("admin@example.com", "admin", 42, "smartattend", "test-key", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token.Value == "" {
		t.Fatal("empty token value")
	}
	if !token.ExpiresAt.After(time.Now()) {
		t.Error("expiry should be in the future")
	}

	claims, err := Parse(token.Value, "test-key", "smartattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "admin@example.com" {
		t.Errorf("Subject = %q; want admin@example.com", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q; want admin", claims.Role)
	}
	if claims.InstituteID != 42 {
		t.Errorf("InstituteID = %d; want 42", claims.InstituteID)
	}
}

func TestParseRejections(t *testing.T) {
	token, err := Issue("admin@example.com", "admin", 1, "smartattend", "right-key", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expired, err := Issue("admin@example.com", "admin", 1, "smartattend", "right-key", -time.Minute)
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", token.Value, "wrong-key", "smartattend"},
		{"wrong issuer", token.Value, "right-key", "someone-else"},
		{"expired", expired.Value, "right-key", "smartattend"},
		{"garbage", "not.a.token", "right-key", "smartattend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.token, tc.key, tc.issuer); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
