package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{80 * time.Millisecond, "80ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{2300 * time.Millisecond, "2.3s"},
		{59 * time.Second, "59.0s"},
		{time.Minute, "1m0.0s"},
		{90 * time.Second, "1m30.0s"},
		{125500 * time.Millisecond, "2m5.5s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		prompt, generated int64
		want              string
	}{
		{0, 0, "0 in, 0 out"},
		{311, 42, "311 in, 42 out"},
		{9999, 120, "9999 in, 120 out"},
		{12345, 120, "12.3k in, 120 out"},
		{2_500_000, 10_000, "2.5M in, 10.0k out"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTokens(tt.prompt, tt.generated); got != tt.want {
				t.Errorf("FormatTokens(%d, %d) = %q, want %q", tt.prompt, tt.generated, got, tt.want)
			}
		})
	}
}
