package alerting

import (
	"fmt"
	"strings"

	"ratewatch/internal/delta"
)

// RenderAlert formats a rate-move notification for one instrument.
func RenderAlert(instrument string, out delta.Outcome, threshold float64) string {
	arrow := "📈"
	if out.New < out.Old {
		arrow = "📉"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s %s rate changed\n", arrow, instrument))
	builder.WriteString(fmt.Sprintf("Was: %s\n", delta.FormatValue(out.Old)))
	builder.WriteString(fmt.Sprintf("Now: %s\n", delta.FormatValue(out.New)))
	builder.WriteString(fmt.Sprintf("Change: %s (%s, threshold %s)",
		delta.FormatValue(out.AbsDiff),
		delta.FormatPct(out.PctDiff),
		delta.FormatPct(threshold),
	))
	return builder.String()
}
