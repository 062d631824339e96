// Package sms delivers and checks one-time verification codes for phone
// number ownership.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/twilio/twilio-go"
	verify "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/reunite-bot/reunite/internal/util"
)

// Verifier sends OTP codes to phone numbers and checks the user's reply.
type Verifier interface {
	// Send delivers a fresh code to the phone number.
	Send(ctx context.Context, phone string) error
	// Check reports whether the code matches the one sent to the phone.
	Check(ctx context.Context, phone, code string) (bool, error)
}

// Opts holds configuration options for the Twilio verifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	ServiceSID string
}

// Option defines a configuration option for the Twilio verifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithServiceSID sets the Twilio Verify service SID.
func WithServiceSID(sid string) Option {
	return func(o *Opts) { o.ServiceSID = sid }
}

// TwilioVerifier checks phone ownership through the Twilio Verify API.
type TwilioVerifier struct {
	client     *twilio.RestClient
	serviceSID string
}

// NewTwilioVerifier creates a verifier backed by Twilio Verify.
func NewTwilioVerifier(opts ...Option) (*TwilioVerifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variables if not provided via options
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.ServiceSID == "" {
		cfg.ServiceSID = os.Getenv("TWILIO_VERIFY_SERVICE_SID")
	}
	slog.Debug("Twilio verifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"ServiceSID_set", cfg.ServiceSID != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.ServiceSID == "" {
		return nil, fmt.Errorf("verify service SID must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioVerifier{client: client, serviceSID: cfg.ServiceSID}, nil
}

func (v *TwilioVerifier) Send(ctx context.Context, phone string) error {
	params := &verify.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")

	if _, err := v.client.VerifyV2.CreateVerification(v.serviceSID, params); err != nil {
		slog.Error("TwilioVerifier Send failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to send verification to %s: %w", phone, err)
	}
	slog.Debug("TwilioVerifier Send succeeded", "phone", phone)
	return nil
}

func (v *TwilioVerifier) Check(ctx context.Context, phone, code string) (bool, error) {
	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	resp, err := v.client.VerifyV2.CreateVerificationCheck(v.serviceSID, params)
	if err != nil {
		slog.Error("TwilioVerifier Check failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to check verification for %s: %w", phone, err)
	}
	approved := resp.Status != nil && *resp.Status == "approved"
	slog.Debug("TwilioVerifier Check result", "phone", phone, "approved", approved)
	return approved, nil
}

// MemoryVerifier generates codes locally and keeps them in memory. Used in
// tests and development setups without Twilio credentials. Codes do not
// expire and attempts are not capped.
type MemoryVerifier struct {
	mu    sync.Mutex
	codes map[string]string
}

// NewMemoryVerifier creates an empty in-memory verifier.
func NewMemoryVerifier() *MemoryVerifier {
	return &MemoryVerifier{codes: make(map[string]string)}
}

// OTPCodeLength is the number of digits in locally generated codes.
const OTPCodeLength = 6

func (v *MemoryVerifier) Send(ctx context.Context, phone string) error {
	code := util.GenerateOTPCode(OTPCodeLength)
	v.mu.Lock()
	v.codes[phone] = code
	v.mu.Unlock()
	slog.Debug("MemoryVerifier Send", "phone", phone, "code", code)
	return nil
}

// LastCode exposes the most recent code for a phone. Test helper.
func (v *MemoryVerifier) LastCode(phone string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.codes[phone]
}

func (v *MemoryVerifier) Check(ctx context.Context, phone, code string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	want, ok := v.codes[phone]
	if !ok {
		return false, nil
	}
	if want != code {
		return false, nil
	}
	delete(v.codes, phone)
	return true, nil
}
