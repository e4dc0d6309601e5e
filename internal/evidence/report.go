package evidence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loykin/cpusentry/internal/monitor"
)

// renderReport produces the human-readable counterpart of the JSON artifact.
func renderReport(stamp string, d monitor.Decision) string {
	var b strings.Builder

	b.WriteString("CPU Usage Alert Report (Individual Process Monitoring)\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", stamp)
	fmt.Fprintf(&b, "Alert triggered by per-instance P%d CPU usage over %.0fs window\n",
		d.Percentile, d.Window.Seconds())
	fmt.Fprintf(&b, "P%d reads the sustained-usage floor: at least %d%% of the window's samples sit at or above it\n\n",
		d.Percentile, 100-d.Percentile)

	b.WriteString("Triggering Instances:\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, st := range d.Alerting {
		fmt.Fprintf(&b, "%s (pid %d):\n", strings.ToUpper(st.Key.Pattern), st.Key.PID)
		fmt.Fprintf(&b, "  Command: %s\n", st.Key.Command)
		fmt.Fprintf(&b, "  Current CPU: %.1f%%\n", st.LastCPU)
		fmt.Fprintf(&b, "  P%d CPU: %.1f%%\n", d.Percentile, st.PercentileValue)
		fmt.Fprintf(&b, "  Threshold: %.1f%%\n\n", d.Threshold)
	}

	b.WriteString("All Instance Statistics:\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, key := range sortedKeys(d.Instances) {
		st := d.Instances[key]
		status := "normal"
		if st.PercentileValue > d.Threshold {
			status = "ALERT"
		}
		fmt.Fprintf(&b, "%s (pid %d): Current: %.1f%%, P%d: %.1f%% - %s\n",
			st.Key.Pattern, st.Key.PID, st.LastCPU, d.Percentile, st.PercentileValue, status)
	}
	fmt.Fprintf(&b, "\nThreshold: %.1f%%\n\n", d.Threshold)

	for _, st := range d.Alerting {
		fmt.Fprintf(&b, "%s (pid %d) - All CPU Readings:\n", strings.ToUpper(st.Key.Pattern), st.Key.PID)
		b.WriteString(strings.Repeat("-", 30) + "\n")
		for i, v := range st.CPUValues {
			fmt.Fprintf(&b, "  Reading %d: %.1f%%\n", i+1, v)
		}
		b.WriteString("\n")
	}

	b.WriteString("Current Instance Details:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	if len(d.Instances) == 0 {
		b.WriteString("No monitored processes currently running\n")
	}
	for _, key := range sortedKeys(d.Instances) {
		st := d.Instances[key]
		fmt.Fprintf(&b, "  PID: %d, CPU: %.1f%%, Command: %s\n", st.Key.PID, st.LastCPU, st.Key.Command)
	}
	return b.String()
}

func sortedKeys(m map[string]monitor.InstanceStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
