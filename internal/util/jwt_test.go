package util

import (
	"testing"
	"time"
)

func TestAttemptTokenRoundTrip(t *testing.T) {
	token, err := GenerateAttemptToken("att-1", "part-1", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAttemptToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AttemptID != "att-1" || claims.ParticipantID != "part-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestAttemptTokenWrongSecret(t *testing.T) {
	token, err := GenerateAttemptToken("att-1", "part-1", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAttemptToken(token, "other-secret"); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestAttemptTokenExpired(t *testing.T) {
	token, err := GenerateAttemptToken("att-1", "part-1", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAttemptToken(token, "test-secret"); err == nil {
		t.Fatalf("expected expiry error")
	}
}
