package sms

import (
	"context"
	"testing"
)

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{name: "default is nop", cfg: ProviderConfig{}},
		{name: "none", cfg: ProviderConfig{Provider: "none"}},
		{name: "twilio", cfg: ProviderConfig{Provider: "twilio", TwilioAccountSID: "AC123", TwilioAuthToken: "secret", FromNumber: "+15550000000"}},
		{name: "twilio without credentials", cfg: ProviderConfig{Provider: "twilio"}, wantErr: true},
		{name: "unknown", cfg: ProviderConfig{Provider: "pigeon"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewProvider(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNopProviderAcceptsMessages(t *testing.T) {
	t.Parallel()

	resp, err := NopProvider{}.SendSMS(context.Background(), &SMSRequest{To: "+919999999999", Message: "hi"})
	if err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if resp.Status != "discarded" {
		t.Errorf("status = %q, want discarded", resp.Status)
	}
}
