package ticket

import (
	"errors"
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	s := NewSigner("secret")
	tok, err := s.Issue("sess", 7, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Session() != "sess" || c.Round != 7 {
		t.Fatalf("claims = %+v", c)
	}
}

func TestVerifyExpired(t *testing.T) {
	s := NewSigner("secret")
	tok, err := s.Issue("sess", 1, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := s.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	tok, _ := NewSigner("one").Issue("sess", 1, time.Now().Add(time.Second))
	if _, err := NewSigner("two").Verify(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := NewSigner("two").Verify("garbage"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}
