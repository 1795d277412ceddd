package cli

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDuration renders a turn latency for the status line.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		return fmt.Sprintf("%dm%.1fs", m, d.Seconds()-float64(m)*60)
	}
}

// FormatTokens renders a prompt/generated token pair for the status
// line.
func FormatTokens(prompt, generated int64) string {
	return formatCount(prompt) + " in, " + formatCount(generated) + " out"
}

// formatCount abbreviates large counts (12345 -> 12.3k).
func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
