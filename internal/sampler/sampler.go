package sampler

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessRow is one process observed in a snapshot. CPUPercent is the raw
// per-process value and may exceed 100 on multi-core systems; it must not be
// clamped.
type ProcessRow struct {
	PID        int32
	Name       string
	Command    string
	CPUPercent float64
}

// Sampler supplies one snapshot of running processes per check interval. An
// empty snapshot is valid. A non-nil error means enumeration itself failed;
// the caller treats that tick as zero matches and keeps going.
type Sampler interface {
	Sample(ctx context.Context) ([]ProcessRow, error)
}

// PS samples via gopsutil. Per-pid read failures are skipped silently since
// pids race with process exit between enumeration and attribute reads.
type PS struct{}

func (PS) Sample(ctx context.Context) ([]ProcessRow, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	rows := make([]ProcessRow, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpu, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		cmd, err := p.CmdlineWithContext(ctx)
		if err != nil || cmd == "" {
			cmd = name
		}
		rows = append(rows, ProcessRow{PID: p.Pid, Name: name, Command: cmd, CPUPercent: cpu})
	}
	return rows, nil
}
