package monitor

import (
	"strings"

	"github.com/loykin/cpusentry/internal/sampler"
)

// MatchPattern reports the first configured pattern (in configuration order)
// that appears as a case-insensitive substring of the row's name or command
// line. Ordering makes multi-pattern matches deterministic across runs for
// the same configuration.
func MatchPattern(patterns []string, name, command string) (string, bool) {
	ln := strings.ToLower(name)
	lc := strings.ToLower(command)
	for _, p := range patterns {
		lp := strings.ToLower(p)
		if lp == "" {
			continue
		}
		if strings.Contains(ln, lp) || strings.Contains(lc, lp) {
			return p, true
		}
	}
	return "", false
}

// resolve maps raw snapshot rows onto tracked instances: rows matching a
// configured pattern are recorded into the store (creating instances on first
// sight), everything else is ignored. Returns the number of samples recorded.
func resolve(st *store, rows []sampler.ProcessRow, patterns []string) int {
	recorded := 0
	for _, row := range rows {
		pattern, ok := MatchPattern(patterns, row.Name, row.Command)
		if !ok {
			continue
		}
		command := row.Command
		if command == "" {
			command = row.Name
		}
		st.Observe(Key{Pattern: pattern, PID: row.PID, Command: command}, row.CPUPercent)
		recorded++
	}
	return recorded
}
