package utils

import (
	"testing"
	"time"
)

func TestLinkTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signed, err := GenerateLinkToken("abc123", "driver", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateLinkToken: %v", err)
	}

	claims, err := ValidateLinkToken(signed, "secret")
	if err != nil {
		t.Fatalf("ValidateLinkToken: %v", err)
	}
	if claims.TripToken != "abc123" || claims.Role != "driver" {
		t.Errorf("claims = (%q, %q), want (abc123, driver)", claims.TripToken, claims.Role)
	}
}

func TestLinkTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signed, err := GenerateLinkToken("abc123", "passenger", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateLinkToken: %v", err)
	}
	if _, err := ValidateLinkToken(signed, "other"); err == nil {
		t.Error("ValidateLinkToken accepted a token signed with a different secret")
	}
}

func TestGenerateOTP(t *testing.T) {
	t.Parallel()

	otp := GenerateOTP(0)
	if len(otp) != OTPLength {
		t.Fatalf("len(GenerateOTP(0)) = %d, want %d", len(otp), OTPLength)
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			t.Fatalf("GenerateOTP returned non-digit %q", otp)
		}
	}

	if tok := GenerateTripToken(); len(tok) != TripTokenLength {
		t.Errorf("len(GenerateTripToken()) = %d, want %d", len(tok), TripTokenLength)
	}
}
