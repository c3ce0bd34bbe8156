package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trainbox/trainbox/internal/metrics"
	"github.com/trainbox/trainbox/pkg/types"
)

// Protocol timing, inherited from the training service wire contract.
const (
	heartbeatInterval       = 30 * time.Second
	gracefulStopTimeout     = 5 * time.Second
	memorySampleIntervalSec = 300
	pollTimeout             = 100 * time.Millisecond
	ptyReadSize             = 1024
)

// RunRecorder persists one record per finished session. May be nil.
type RunRecorder interface {
	RecordRun(rec types.RunRecord) error
}

// Orchestrator drives one execution session over one live channel:
// request, spawn, stream, cancel, finalize, close.
//
// Two rules shape every branch. Loss of the live channel never aborts the
// child or its monitoring; delivery degrades to log-only and the child runs
// to completion. Explicit cancellation always reaps the child, graceful
// signal first, forceful kill second.
type Orchestrator struct {
	registry  *Registry
	log       *PipelineLog
	recorder  RunRecorder
	pythonBin string

	ch        Channel
	sessionID string

	cancelled bool // explicit CANCEL received
	chanLost  bool // live channel gone; log-only from here on
}

// NewOrchestrator wires a session for one accepted connection.
func NewOrchestrator(registry *Registry, plog *PipelineLog, recorder RunRecorder, pythonBin string, ch Channel) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		log:       plog,
		recorder:  recorder,
		pythonBin: pythonBin,
		ch:        ch,
		sessionID: uuid.New().String(),
	}
}

// SessionID returns the session's opaque id.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Run executes the full session lifecycle and returns once the session is
// closed. Closing is idempotent across the cleanup paths inside.
func (o *Orchestrator) Run() {
	defer o.ch.Close()

	if err := o.log.Init(); err != nil {
		log.Printf("trainbox: pipeline log init: %v", err)
		o.send("EXECUTION_ERROR: " + err.Error())
		return
	}
	// Backstop for early returns; a completed run finalizes before this and
	// makes it a no-op.
	defer o.log.Finalize(false)

	o.sendAndLog("WebSocket connected successfully")

	raw, err := o.ch.ReadMessage()
	if err != nil {
		o.log.Append("EXECUTION_ERROR: connection closed before a request arrived")
		o.log.Finalize(false)
		return
	}

	var req types.ExecuteRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil || req.ScriptPath == "" {
		o.sendAndLog("EXECUTION_ERROR: No script path provided")
		o.log.Finalize(false)
		return
	}

	o.execute(&req)
}

func (o *Orchestrator) execute(req *types.ExecuteRequest) {
	start := time.Now()
	name, args := buildCommand(o.pythonBin, req.ScriptPath, req.Args)

	o.sendAndLog("Executing: " + strings.Join(append([]string{name}, args...), " "))

	if snap, err := takeMemorySnapshot(); err == nil {
		o.sendAndLog(snap.report("MEMORY_INITIAL", "Starting execution"))
	}

	ctl, err := Spawn(name, args...)
	if err != nil {
		o.sendAndLog("EXECUTION_ERROR: " + err.Error())
		o.log.Finalize(false)
		o.record(req, start, types.RunFailed, -1)
		return
	}

	o.registry.Add(o.sessionID, ctl)
	metrics.SessionsActive.Inc()
	defer func() {
		ctl.Close()
		o.registry.Remove(o.sessionID)
		metrics.SessionsActive.Dec()
	}()

	reports := make(chan string, 4)
	sampler := startMemorySampler(reports)

	o.streamUntilDone(ctl, reports)
	sampler.Stop()
	o.drainReports(reports)

	if o.cancelled {
		o.terminate(ctl)
		o.send("EXECUTION_ERROR: Execution cancelled")
		o.log.Finalize(false)
		o.record(req, start, types.RunCancelled, ctl.Wait())
		metrics.ExecutionDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
		return
	}

	ctl.Close()
	code := ctl.Wait()

	if snap, err := takeMemorySnapshot(); err == nil {
		o.sendAndLog(snap.report("MEMORY_FINAL", "Execution completed"))
	}

	if code == 0 {
		o.sendAndLog("EXECUTION_FINISHED")
		o.log.Finalize(true)
		o.record(req, start, types.RunCompleted, 0)
		metrics.ExecutionDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
	} else {
		o.sendAndLog(fmt.Sprintf("EXECUTION_ERROR: Script failed with exit code %d", code))
		o.log.Finalize(false)
		o.record(req, start, types.RunFailed, code)
		metrics.ExecutionDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
	}
}

// streamUntilDone multiplexes the running session's event sources: inbound
// control messages, PTY output, memory reports and the heartbeat timer. It
// returns when the child's output stream ends or cancellation is requested.
func (o *Orchestrator) streamUntilDone(ctl *Controller, reports <-chan string) {
	cancel := make(chan struct{}, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := o.ch.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if strings.TrimSpace(msg) != "CANCEL" {
				continue // other inbound text is ignored while running
			}
			select {
			case cancel <- struct{}{}:
			default:
			}
		}
	}()

	var carry []byte
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-cancel:
			o.cancelled = true
			o.log.Append("Cancellation requested by user")
			return

		case err := <-readErr:
			if channelGone(err) && !o.chanLost {
				o.chanLost = true
				o.log.Append("WebSocket connection lost - continuing in log-only mode")
			}

		case chunk, ok := <-ctl.Output():
			if !ok {
				o.flushCarry(carry)
				return
			}
			carry = o.forwardChunk(carry, chunk)
			heartbeat.Reset(heartbeatInterval)

		case line := <-reports:
			o.sendAndLog(line)

		case <-ctl.Done():
			// Natural completion: one bounded extra pass to flush whatever
			// the PTY still buffers, then leave the loop.
			carry = o.drainOutput(ctl, carry)
			o.flushCarry(carry)
			return

		case <-heartbeat.C:
			o.send("HEARTBEAT: Process running...")
			metrics.HeartbeatsSent.Inc()
		}
	}
}

// drainOutput flushes remaining PTY output after the child exited, bounded by
// the poll timeout per read.
func (o *Orchestrator) drainOutput(ctl *Controller, carry []byte) []byte {
	for {
		select {
		case chunk, ok := <-ctl.Output():
			if !ok {
				return carry
			}
			carry = o.forwardChunk(carry, chunk)
		case <-time.After(pollTimeout):
			return carry
		}
	}
}

// forwardChunk splits buffered PTY data into lines and forwards each
// non-empty line through both sinks in read order. A partial trailing line is
// carried to the next chunk so no line is ever split.
func (o *Orchestrator) forwardChunk(carry, chunk []byte) []byte {
	data := append(carry, chunk...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return data
		}
		o.forwardLine(string(data[:i]))
		data = data[i+1:]
	}
}

func (o *Orchestrator) flushCarry(carry []byte) {
	if len(carry) > 0 {
		o.forwardLine(string(carry))
	}
}

func (o *Orchestrator) forwardLine(line string) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r"))
	if line == "" {
		return
	}
	o.sendAndLog(line)
	metrics.OutputLines.Inc()
}

// terminate runs the two-phase stop and logs which phase fired.
func (o *Orchestrator) terminate(ctl *Controller) {
	o.log.Append("Process execution cancelled - terminating")
	switch ctl.Shutdown() {
	case StopGraceful:
		o.log.Append(fmt.Sprintf("Process terminated gracefully (PID: %d)", ctl.PID()))
	case StopForced:
		o.log.Append(fmt.Sprintf("Process forcefully killed (PID: %d)", ctl.PID()))
	case StopNotNeeded:
		o.log.Append("Process already exited")
	}
}

// sendAndLog delivers a message through both sinks. Delivery counts once the
// log has it; the live copy is best-effort.
func (o *Orchestrator) sendAndLog(message string) {
	o.log.Append(message)
	o.send(message)
}

// send writes to the live channel only. A permanent write failure flips the
// session to log-only mode; the child is not disturbed.
func (o *Orchestrator) send(message string) {
	if o.chanLost {
		return
	}
	if err := o.ch.WriteMessage(message); err != nil && channelGone(err) {
		o.chanLost = true
		o.log.Append("WebSocket connection lost - continuing in log-only mode")
	}
}

func (o *Orchestrator) drainReports(reports <-chan string) {
	for {
		select {
		case line := <-reports:
			o.sendAndLog(line)
		default:
			return
		}
	}
}

func (o *Orchestrator) record(req *types.ExecuteRequest, start time.Time, status string, exitCode int) {
	if o.recorder == nil {
		return
	}
	now := time.Now()
	rec := types.RunRecord{
		SessionID:  o.sessionID,
		Script:     req.ScriptPath,
		Args:       req.Args,
		Status:     status,
		ExitCode:   exitCode,
		StartedAt:  start.UTC().Format(time.RFC3339),
		EndedAt:    now.UTC().Format(time.RFC3339),
		DurationMs: int(now.Sub(start).Milliseconds()),
	}
	if err := o.recorder.RecordRun(rec); err != nil {
		log.Printf("trainbox: record run %s: %v", o.sessionID, err)
	}
}

// buildCommand maps a script request to an executable invocation. Python
// scripts run unbuffered under the configured interpreter; anything else is
// executed directly so shebang scripts work too.
func buildCommand(pythonBin, script string, args []string) (string, []string) {
	if strings.HasSuffix(script, ".py") {
		return pythonBin, append([]string{"-u", script}, args...)
	}
	return script, args
}
