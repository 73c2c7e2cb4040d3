package probe

import (
	"errors"
	"testing"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw  string
		host string
		port int
	}{
		{"example.com", "example.com", 443},
		{"Example.COM.", "example.com", 443},
		{"example.com:8443", "example.com", 8443},
		{"https://example.com/login", "example.com", 443},
		{"https://example.com:9443", "example.com", 9443},
		{"[2001:db8::1]:443", "2001:db8::1", 443},
		{"[2001:db8::1]", "2001:db8::1", 443},
		{"  10.0.0.1  ", "10.0.0.1", 443},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, err := ParseTarget(tt.raw)
			if err != nil {
				t.Fatalf("ParseTarget(%q) returned error: %v", tt.raw, err)
			}
			if target.Host != tt.host || target.Port != tt.port {
				t.Errorf("ParseTarget(%q) = %+v, want %s:%d", tt.raw, target, tt.host, tt.port)
			}
		})
	}
}

func TestParseTargetErrors(t *testing.T) {
	if _, err := ParseTarget("   "); !errors.Is(err, sharedErrors.ErrEmptyTarget) {
		t.Errorf("expected ErrEmptyTarget, got %v", err)
	}

	for _, raw := range []string{"http://example.com", "example.com:0", "example.com:70000", "example.com:https", "user@example.com"} {
		if _, err := ParseTarget(raw); !errors.Is(err, sharedErrors.ErrInvalidTarget) {
			t.Errorf("ParseTarget(%q): expected ErrInvalidTarget, got %v", raw, err)
		}
	}
}

func TestTargetAddr(t *testing.T) {
	if got := (Target{Host: "2001:db8::1", Port: 443}).Addr(); got != "[2001:db8::1]:443" {
		t.Errorf("unexpected addr %q", got)
	}
	if got := (Target{Host: "example.com", Port: 8443}).String(); got != "example.com:8443" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestParseHSTSMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   int64
	}{
		{"max-age=31536000", 31536000},
		{"max-age=63072000; includeSubDomains; preload", 63072000},
		{"includeSubDomains; MAX-AGE=\"300\"", 300},
		{" max-age = 0 ", 0},
	}

	for _, tt := range tests {
		got, err := ParseHSTSMaxAge(tt.header)
		if err != nil {
			t.Fatalf("ParseHSTSMaxAge(%q) returned error: %v", tt.header, err)
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseHSTSMaxAge(%q) = %v, want %d", tt.header, got, tt.want)
		}
	}
}

func TestParseHSTSMaxAgeAbsentAndInvalid(t *testing.T) {
	got, err := ParseHSTSMaxAge("")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for empty header, got %v, %v", got, err)
	}

	for _, header := range []string{"includeSubDomains", "max-age=abc", "max-age=-5", "max-age=1; max-age=2"} {
		if _, err := ParseHSTSMaxAge(header); !errors.Is(err, sharedErrors.ErrInvalidHSTS) {
			t.Errorf("ParseHSTSMaxAge(%q): expected ErrInvalidHSTS, got %v", header, err)
		}
	}
}
