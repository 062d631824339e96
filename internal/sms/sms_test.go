package sms

import (
	"context"
	"testing"
)

func TestMemoryVerifierRoundTrip(t *testing.T) {
	v := NewMemoryVerifier()
	ctx := context.Background()

	if err := v.Send(ctx, "+15550001"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	code := v.LastCode("+15550001")
	if len(code) != OTPCodeLength {
		t.Fatalf("expected %d-digit code, got %q", OTPCodeLength, code)
	}

	ok, err := v.Check(ctx, "+15550001", code)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !ok {
		t.Error("expected correct code to verify")
	}

	// A code is single-use.
	ok, err = v.Check(ctx, "+15550001", code)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if ok {
		t.Error("expected used code to be rejected")
	}
}

func TestMemoryVerifierWrongCode(t *testing.T) {
	v := NewMemoryVerifier()
	ctx := context.Background()

	if err := v.Send(ctx, "+15550001"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	ok, err := v.Check(ctx, "+15550001", "000000")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if ok && v.LastCode("+15550001") != "000000" {
		t.Error("wrong code must not verify")
	}

	// Wrong code does not consume the stored one.
	ok, err = v.Check(ctx, "+15550001", v.LastCode("+15550001"))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !ok {
		t.Error("correct code should still verify after a wrong attempt")
	}
}

func TestMemoryVerifierUnknownPhone(t *testing.T) {
	v := NewMemoryVerifier()
	ok, err := v.Check(context.Background(), "+15559999", "123456")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if ok {
		t.Error("phone without a sent code must not verify")
	}
}

func TestNewTwilioVerifierRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_VERIFY_SERVICE_SID", "")

	if _, err := NewTwilioVerifier(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioVerifier(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without a verify service SID")
	}
	if _, err := NewTwilioVerifier(WithAccountSID("AC123"), WithAuthToken("tok"), WithServiceSID("VA123")); err != nil {
		t.Errorf("expected construction to succeed with full credentials, got %v", err)
	}
}
