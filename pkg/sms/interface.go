package sms

import (
	"context"
	"fmt"
	"strings"
)

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
}

type SMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
	Type    string `json:"type"` // transactional, otp
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type ProviderConfig struct {
	Provider         string
	TwilioAccountSID string
	TwilioAuthToken  string
	FromNumber       string
	AWSRegion        string
}

// NewProvider returns the configured provider. "none" yields a provider that
// accepts and discards every message.
func NewProvider(ctx context.Context, cfg ProviderConfig) (SMSProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return NopProvider{}, nil
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			return nil, fmt.Errorf("twilio: account sid and auth token are required")
		}
		return NewTwilioProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.FromNumber), nil
	case "aws", "sns":
		return NewAWSSNSProvider(ctx, cfg.AWSRegion)
	default:
		return nil, fmt.Errorf("unsupported sms provider: %s", cfg.Provider)
	}
}

type NopProvider struct{}

func (NopProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	return &SMSResponse{Status: "discarded"}, nil
}
