package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-value-at-least-32-chars!"

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	userID, username, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != 42 || username != "alice" {
		t.Errorf("Verify = (%d, %s), want (42, alice)", userID, username)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, -time.Minute)

	token, err := issuer.Issue(42, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := issuer.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer(testSecret, time.Hour).Issue(42, "alice")
	if err != nil {
		t.Fatal(err)
	}

	other := NewTokenIssuer("a-completely-different-32-char-key!!", time.Hour)
	if _, _, err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}
