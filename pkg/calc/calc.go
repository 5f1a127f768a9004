// Package calc provides progress arithmetic and human-readable formatting.
package calc

import (
	"fmt"
	"math"
	"time"
)

const percentFull = 100

// Progress calculates the percentage for a given pair of numbers, clamped to [0, 100].
func Progress(downloaded, total int64) float64 {
	if total <= 0 || downloaded <= 0 {
		return 0
	}

	return math.Min(float64(downloaded)/float64(total)*percentFull, percentFull)
}

// ETA estimates the remaining time from the bytes done after elapsed.
func ETA(downloaded, total int64, elapsed time.Duration) time.Duration {
	if total <= 0 || downloaded <= 0 || downloaded >= total {
		return 0
	}

	return time.Duration(float64(elapsed) * (float64(total)/float64(downloaded) - 1))
}

// Speed returns bytes per second for n bytes transferred during elapsed.
func Speed(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(n) / elapsed.Seconds()
}

// HumanBytes formats a byte count with binary units, e.g. 1.5 MiB.
func HumanBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

// Clock formats seconds as H:MM:SS, or M:SS below one hour.
func Clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}

	total := int(math.Round(seconds))
	h, m, s := total/3600, total%3600/60, total%60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%d:%02d", m, s)
}
