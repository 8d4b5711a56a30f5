package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cnvix/internal/models"
	"cnvix/pkg/utils"
)

// FormatOptional formats an optional value with four decimals, "-" when absent.
func FormatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatDecimal(*v)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatReasons renders skip counts as "reason=n" pairs in a stable order.
func FormatReasons(counts map[models.SkipReason]int) string {
	if len(counts) == 0 {
		return "none"
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, counts[models.SkipReason(r)]))
	}
	return strings.Join(parts, " ")
}
