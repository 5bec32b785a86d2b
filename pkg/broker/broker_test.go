package broker

import (
	"testing"

	"github.com/diintechteam9/cab-tracker/pkg/logger"
)

func TestSubjectToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "abc123", want: "abc123"},
		{in: " a.b ", want: "a_b"},
		{in: "x>*y", want: "x__y"},
		{in: "", want: "_"},
	}
	for _, tt := range tests {
		if got := subjectToken(tt.in); got != tt.want {
			t.Errorf("subjectToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none"} {
		b, err := New(Config{Driver: driver}, nil, nil, logger.NewNop())
		if err != nil || b != nil {
			t.Errorf("New(%q) = %v, %v; want nil, nil", driver, b, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Driver: "redis"}, nil, nil, logger.NewNop()); err == nil {
		t.Error("redis broker without a redis client should fail")
	}
	if _, err := New(Config{Driver: "kafka"}, nil, nil, logger.NewNop()); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestRedisChannelNaming(t *testing.T) {
	t.Parallel()

	b := NewRedisBroker(nil, "cabtracker", nil, logger.NewNop())
	if got := b.channel("abc123"); got != "cabtracker:trip:abc123" {
		t.Errorf("channel = %q, want cabtracker:trip:abc123", got)
	}
}
