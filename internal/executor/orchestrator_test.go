package executor

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trainbox/trainbox/pkg/types"
)

// fakeChannel is an in-memory Channel for session tests. Reads drain the
// inbound queue; writes append to sent. Break simulates an abrupt
// disconnect: reads fail and writes return a permanent error.
type fakeChannel struct {
	mu       sync.Mutex
	inbound  chan string
	sent     []string
	broken   bool
	closed   bool
	inClosed bool
}

func newFakeChannel(inbound ...string) *fakeChannel {
	f := &fakeChannel{inbound: make(chan string, 16)}
	for _, msg := range inbound {
		f.inbound <- msg
	}
	return f
}

func (f *fakeChannel) ReadMessage() (string, error) {
	msg, ok := <-f.inbound
	if !ok {
		return "", errors.New("connection closed")
	}
	return msg, nil
}

func (f *fakeChannel) WriteMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken || f.closed {
		return errors.New("connection closed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeInbound()
	return nil
}

// Break severs the connection mid-session without marking it closed.
func (f *fakeChannel) Break() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = true
	f.closeInbound()
}

// closeInbound is called with the mutex held.
func (f *fakeChannel) closeInbound() {
	if !f.inClosed {
		f.inClosed = true
		close(f.inbound)
	}
}

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type memRecorder struct {
	mu   sync.Mutex
	recs []types.RunRecord
}

func (m *memRecorder) RecordRun(rec types.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memRecorder) records() []types.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.RunRecord(nil), m.recs...)
}

func executeRequest(t *testing.T, script string, args ...string) string {
	t.Helper()
	raw, err := json.Marshal(types.ExecuteRequest{ScriptPath: script, Args: args})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return string(raw)
}

func newTestSession(t *testing.T, ch Channel, rec RunRecorder) (*Orchestrator, *Registry, string) {
	t.Helper()
	registry := NewRegistry()
	logPath := filepath.Join(t.TempDir(), "pipeline.log")
	o := NewOrchestrator(registry, NewPipelineLog(logPath), rec, "python3", ch)
	return o, registry, logPath
}

func containsMessage(msgs []string, want string) bool {
	for _, m := range msgs {
		if m == want {
			return true
		}
	}
	return false
}

func TestSessionSuccess(t *testing.T) {
	script := writeScript(t, "good.sh", "echo hello")
	rec := &memRecorder{}
	ch := newFakeChannel(executeRequest(t, script))
	o, registry, logPath := newTestSession(t, ch, rec)

	o.Run()

	sent := ch.Sent()
	if !containsMessage(sent, "hello") {
		t.Errorf("output line missing from channel: %v", sent)
	}
	if !containsMessage(sent, "EXECUTION_FINISHED") {
		t.Errorf("completion sentinel missing from channel: %v", sent)
	}

	content := readLog(t, logPath)
	if !strings.Contains(content, "hello") {
		t.Error("output line missing from pipeline log")
	}
	if !strings.Contains(content, "Pipeline COMPLETED SUCCESSFULLY at: ") {
		t.Errorf("success trailer missing, got %q", content)
	}
	if strings.Contains(content, "HEARTBEAT") {
		t.Error("heartbeat leaked into pipeline log")
	}

	if registry.Len() != 0 {
		t.Errorf("expected empty registry after run, got %d", registry.Len())
	}

	recs := rec.records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(recs))
	}
	if recs[0].Status != types.RunCompleted || recs[0].ExitCode != 0 {
		t.Errorf("unexpected record: %+v", recs[0])
	}
	if recs[0].Script != script {
		t.Errorf("expected script %q in record, got %q", script, recs[0].Script)
	}
}

func TestSessionOutputOrder(t *testing.T) {
	script := writeScript(t, "abc.sh", "printf 'A\\nB\\nC\\n'")
	ch := newFakeChannel(executeRequest(t, script))
	o, _, logPath := newTestSession(t, ch, nil)

	o.Run()

	var got []string
	for _, m := range ch.Sent() {
		if m == "A" || m == "B" || m == "C" {
			got = append(got, m)
		}
	}
	if strings.Join(got, "") != "ABC" {
		t.Errorf("channel order wrong: %v", got)
	}

	content := readLog(t, logPath)
	ia, ib, ic := strings.Index(content, "] A\n"), strings.Index(content, "] B\n"), strings.Index(content, "] C\n")
	if ia < 0 || ib < 0 || ic < 0 || !(ia < ib && ib < ic) {
		t.Errorf("log order wrong: A=%d B=%d C=%d", ia, ib, ic)
	}
}

func TestSessionScriptFailure(t *testing.T) {
	script := writeScript(t, "bad.sh", "echo oops\nexit 1")
	rec := &memRecorder{}
	ch := newFakeChannel(executeRequest(t, script))
	o, _, logPath := newTestSession(t, ch, rec)

	o.Run()

	sent := ch.Sent()
	if !containsMessage(sent, "EXECUTION_ERROR: Script failed with exit code 1") {
		t.Errorf("failure sentinel missing from channel: %v", sent)
	}
	if containsMessage(sent, "EXECUTION_FINISHED") {
		t.Error("failed run must not send the completion sentinel")
	}

	content := readLog(t, logPath)
	if !strings.Contains(content, "Pipeline FAILED at: ") {
		t.Errorf("failure trailer missing, got %q", content)
	}

	recs := rec.records()
	if len(recs) != 1 || recs[0].Status != types.RunFailed || recs[0].ExitCode != 1 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestSessionInvalidRequest(t *testing.T) {
	ch := newFakeChannel("{}")
	o, registry, logPath := newTestSession(t, ch, nil)

	o.Run()

	if !containsMessage(ch.Sent(), "EXECUTION_ERROR: No script path provided") {
		t.Errorf("expected request rejection, got %v", ch.Sent())
	}
	content := readLog(t, logPath)
	if !strings.Contains(content, "Pipeline FAILED at: ") {
		t.Error("rejected session must still finalize the log")
	}
	if registry.Len() != 0 {
		t.Errorf("expected empty registry, got %d", registry.Len())
	}
}

func TestSessionSpawnError(t *testing.T) {
	rec := &memRecorder{}
	ch := newFakeChannel(executeRequest(t, "/nonexistent/run.sh"))
	o, _, logPath := newTestSession(t, ch, rec)

	o.Run()

	var sawError bool
	for _, m := range ch.Sent() {
		if strings.HasPrefix(m, "EXECUTION_ERROR: ") {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("expected spawn failure on the channel, got %v", ch.Sent())
	}
	if !strings.Contains(readLog(t, logPath), "Pipeline FAILED at: ") {
		t.Error("spawn failure must finalize the log as failed")
	}

	recs := rec.records()
	if len(recs) != 1 || recs[0].Status != types.RunFailed {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestSessionCancel(t *testing.T) {
	script := writeScript(t, "slow.sh", "sleep 30")
	rec := &memRecorder{}
	ch := newFakeChannel(executeRequest(t, script))
	o, registry, logPath := newTestSession(t, ch, rec)

	done := make(chan struct{})
	go func() {
		o.Run()
		close(done)
	}()

	waitFor(t, 5*time.Second, func() bool { return registry.Len() == 1 })
	var pid int
	for _, info := range registry.List() {
		pid = info.PID
	}

	start := time.Now()
	ch.inbound <- "CANCEL"

	select {
	case <-done:
	case <-time.After(gracefulStopTimeout + 3*time.Second):
		t.Fatal("session did not end after cancellation")
	}
	if elapsed := time.Since(start); elapsed > gracefulStopTimeout+2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}

	sent := ch.Sent()
	if !containsMessage(sent, "EXECUTION_ERROR: Execution cancelled") {
		t.Errorf("cancellation sentinel missing from channel: %v", sent)
	}
	if containsMessage(sent, "EXECUTION_FINISHED") {
		t.Error("cancelled run must not send the completion sentinel")
	}

	content := readLog(t, logPath)
	if !strings.Contains(content, "Cancellation requested by user") {
		t.Error("cancellation not recorded in pipeline log")
	}
	if !strings.Contains(content, "Pipeline FAILED at: ") {
		t.Error("cancelled run must finalize the log as failed")
	}

	if !processGone(pid) {
		t.Errorf("pid %d still alive after cancellation", pid)
	}
	if registry.Len() != 0 {
		t.Errorf("expected empty registry, got %d", registry.Len())
	}

	recs := rec.records()
	if len(recs) != 1 || recs[0].Status != types.RunCancelled {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestSessionSurvivesChannelLoss(t *testing.T) {
	script := writeScript(t, "late.sh", "sleep 1\necho late")
	ch := newFakeChannel(executeRequest(t, script))
	o, registry, logPath := newTestSession(t, ch, nil)

	done := make(chan struct{})
	go func() {
		o.Run()
		close(done)
	}()

	waitFor(t, 5*time.Second, func() bool { return registry.Len() == 1 })
	ch.Break()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish after channel loss")
	}

	content := readLog(t, logPath)
	if !strings.Contains(content, "WebSocket connection lost - continuing in log-only mode") {
		t.Error("channel loss not recorded in pipeline log")
	}
	if !strings.Contains(content, "late") {
		t.Error("output after channel loss missing from pipeline log")
	}
	if !strings.Contains(content, "Pipeline COMPLETED SUCCESSFULLY at: ") {
		t.Errorf("expected success trailer despite channel loss, got %q", content)
	}
	if containsMessage(ch.Sent(), "late") {
		t.Error("output sent over a severed channel")
	}
	if registry.Len() != 0 {
		t.Errorf("expected empty registry, got %d", registry.Len())
	}
}

func TestSessionConnectionClosedBeforeRequest(t *testing.T) {
	ch := newFakeChannel()
	o, _, logPath := newTestSession(t, ch, nil)

	done := make(chan struct{})
	go func() {
		o.Run()
		close(done)
	}()
	ch.Break()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end after pre-request disconnect")
	}
	if !strings.Contains(readLog(t, logPath), "Pipeline FAILED at: ") {
		t.Error("pre-request disconnect must finalize the log as failed")
	}
}

func TestBuildCommand(t *testing.T) {
	name, args := buildCommand("python3", "train.py", []string{"--epochs", "5"})
	if name != "python3" {
		t.Errorf("expected python interpreter, got %q", name)
	}
	want := []string{"-u", "train.py", "--epochs", "5"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("expected args %v, got %v", want, args)
	}

	name, args = buildCommand("python3", "run.sh", []string{"x"})
	if name != "run.sh" || len(args) != 1 || args[0] != "x" {
		t.Errorf("expected direct execution, got %q %v", name, args)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
