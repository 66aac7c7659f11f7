package auth

import (
	"testing"

	"github.com/dvloznov/sales-analytics/internal/config"
)

func TestLogin(t *testing.T) {
	a := New(config.AuthConfig{Username: "admin", Password: "admin123"})

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid credentials", "admin", "admin123", false},
		{"wrong password", "admin", "admin", true},
		{"wrong user", "root", "admin123", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := a.Login(tt.username, tt.password)
			if tt.wantErr {
				if err != ErrInvalidCredentials {
					t.Fatalf("Expected ErrInvalidCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if s.Token == "" || s.User != "admin" {
				t.Errorf("Unexpected session %+v", s)
			}
			if !a.Validate(s.Token) {
				t.Error("Expected issued token to validate")
			}
		})
	}
}

func TestValidate_UnknownAndRevokedTokens(t *testing.T) {
	a := New(config.AuthConfig{Username: "admin", Password: "admin123"})

	if a.Validate("") {
		t.Error("Empty token must not validate")
	}
	if a.Validate("not-a-token") {
		t.Error("Unknown token must not validate")
	}

	s, err := a.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	a.Logout(s.Token)
	if a.Validate(s.Token) {
		t.Error("Token must not validate after logout")
	}
}

func TestLogin_TokensAreUnique(t *testing.T) {
	a := New(config.AuthConfig{Username: "admin", Password: "admin123"})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := a.Login("admin", "admin123")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if seen[s.Token] {
			t.Fatalf("Duplicate token %s", s.Token)
		}
		seen[s.Token] = true
	}
}
