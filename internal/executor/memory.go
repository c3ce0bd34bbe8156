package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Keywords that mark a python process as part of the training pipeline.
var trainingKeywords = []string{"train", "yolo", "ultralytics"}

// Python processes below this resident size are noise, not worth reporting.
const minTrackedRSSMB = 50.0

// procSample is one process row in a memory snapshot.
type procSample struct {
	pid     int32
	rssMB   float64
	cmdline string
}

// memorySnapshot is a point-in-time view of container memory plus the python
// processes worth reporting, with the training-related subset flagged.
type memorySnapshot struct {
	usedGB   float64
	totalGB  float64
	percent  float64
	python   []procSample
	training []procSample
}

// takeMemorySnapshot samples system memory and scans the process table.
func takeMemorySnapshot() (*memorySnapshot, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	snap := &memorySnapshot{
		usedGB:  float64(vm.Used) / (1 << 30),
		totalGB: float64(vm.Total) / (1 << 30),
		percent: vm.UsedPercent,
	}

	procs, err := process.Processes()
	if err != nil {
		// The totals alone still make a useful report.
		return snap, nil
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.Contains(strings.ToLower(name), "python") {
			continue
		}
		mi, err := p.MemoryInfo()
		if err != nil || mi == nil {
			continue
		}
		rssMB := float64(mi.RSS) / (1 << 20)
		if rssMB <= minTrackedRSSMB {
			continue
		}
		cmdline, _ := p.Cmdline()
		if cmdline == "" {
			cmdline = name
		}
		sample := procSample{pid: p.Pid, rssMB: rssMB, cmdline: cmdlinePrefix(cmdline)}
		snap.python = append(snap.python, sample)
		if isTrainingCmdline(cmdline) {
			snap.training = append(snap.training, sample)
		}
	}
	return snap, nil
}

// cmdlinePrefix keeps the first three words of a command line.
func cmdlinePrefix(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}

func isTrainingCmdline(cmdline string) bool {
	lower := strings.ToLower(cmdline)
	for _, kw := range trainingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// report renders the snapshot totals as one protocol line under the given
// prefix, e.g. "MEMORY_INITIAL". A non-empty suffix is appended after a dash.
func (s *memorySnapshot) report(prefix, suffix string) string {
	line := fmt.Sprintf("%s: Container %.2fGB/%.2fGB (%.1f%%)", prefix, s.usedGB, s.totalGB, s.percent)
	if suffix != "" {
		line += " - " + suffix
	}
	return line
}

// monitorReport is the periodic report: totals plus the training processes,
// or the two biggest python processes when no training is detected.
func (s *memorySnapshot) monitorReport() string {
	line := s.report("MEMORY_MONITOR", "")
	if len(s.training) > 0 {
		return line + " | Training: " + formatProcs(s.training)
	}
	if len(s.python) > 0 {
		top := append([]procSample(nil), s.python...)
		sort.Slice(top, func(i, j int) bool { return top[i].rssMB > top[j].rssMB })
		if len(top) > 2 {
			top = top[:2]
		}
		return line + " | Python: " + formatProcs(top)
	}
	return line
}

func formatProcs(procs []procSample) string {
	parts := make([]string, 0, len(procs))
	for _, p := range procs {
		parts = append(parts, fmt.Sprintf("PID%d:%.1fMB", p.pid, p.rssMB))
	}
	return strings.Join(parts, ", ")
}

// memorySampler produces periodic memory reports while a session runs. It is
// stopped cooperatively and observes the stop signal within one second.
type memorySampler struct {
	reports chan<- string
	stop    chan struct{}
	done    chan struct{}
}

// startMemorySampler begins sampling in the background. Report lines are
// delivered on reports and travel the same dual-sink path as process output.
func startMemorySampler(reports chan<- string) *memorySampler {
	s := &memorySampler{
		reports: reports,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *memorySampler) run() {
	defer close(s.done)
	for {
		// Sleep in one-second steps so Stop is observed promptly.
		for i := 0; i < memorySampleIntervalSec; i++ {
			select {
			case <-s.stop:
				return
			case <-time.After(time.Second):
			}
		}

		// A sampling failure becomes a report line; the sampler never aborts.
		var line string
		if snap, err := takeMemorySnapshot(); err != nil {
			line = "MEMORY_ERROR: Monitoring failed - " + err.Error()
		} else {
			line = snap.monitorReport()
		}

		select {
		case s.reports <- line:
		case <-s.stop:
			return
		}
	}
}

// Stop ends sampling and waits for the sampler goroutine to exit.
func (s *memorySampler) Stop() {
	close(s.stop)
	<-s.done
}
