package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// StopPhase records which phase of the two-phase stop ended the child.
type StopPhase int

const (
	// StopNotNeeded means the child had already exited.
	StopNotNeeded StopPhase = iota
	// StopGraceful means the cooperative stop signal was honored in time.
	StopGraceful
	// StopForced means the child ignored the graceful signal and was killed.
	StopForced
)

// Controller owns one child process attached to a pseudo-terminal: spawn,
// poll, two-phase stop, wait.
type Controller struct {
	cmd    *exec.Cmd
	master *os.File
	output chan []byte

	done     chan struct{}
	exitCode int // written before done closes

	closeOnce sync.Once
}

// Spawn starts command on a fresh PTY and begins pumping its output.
func Spawn(command string, args ...string) (*Controller, error) {
	cmd := exec.Command(command, args...)
	master, err := startOnPTY(cmd)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}

	c := &Controller{
		cmd:    cmd,
		master: master,
		output: make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	go pumpOutput(master, c.output)

	go func() {
		err := cmd.Wait()
		c.exitCode = exitCodeFrom(err)
		close(c.done)
	}()

	return c, nil
}

// PID returns the child's process id.
func (c *Controller) PID() int { return c.cmd.Process.Pid }

// Output delivers raw PTY chunks in read order. Closed when the stream ends.
func (c *Controller) Output() <-chan []byte { return c.output }

// Done is closed once the child has been reaped.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Poll reports whether the child is still running without blocking. The exit
// code is only meaningful once running is false.
func (c *Controller) Poll() (running bool, exitCode int) {
	select {
	case <-c.done:
		return false, c.exitCode
	default:
		return true, 0
	}
}

// Running reports whether the child is still alive.
func (c *Controller) Running() bool {
	running, _ := c.Poll()
	return running
}

// Wait blocks until the child is reaped and returns its exit code.
func (c *Controller) Wait() int {
	<-c.done
	return c.exitCode
}

// waitTimeout waits up to d for the child to exit.
func (c *Controller) waitTimeout(d time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Terminate sends the cooperative stop signal.
func (c *Controller) Terminate() { c.signal(syscall.SIGTERM) }

// Kill sends the unconditional stop signal.
func (c *Controller) Kill() { c.signal(syscall.SIGKILL) }

func (c *Controller) signal(sig syscall.Signal) {
	if c.cmd.Process == nil {
		return
	}
	// The PTY start makes the child a session leader, so signalling its
	// process group reaches the whole tree it spawned.
	if err := syscall.Kill(-c.cmd.Process.Pid, sig); err != nil {
		_ = c.cmd.Process.Signal(sig)
	}
}

// Shutdown stops the child with the graceful-then-forceful protocol: SIGTERM,
// a bounded wait, then SIGKILL with an unbounded wait. Returns which phase
// ended the child. Single-phase kill is not enough here; training tooling may
// need the graceful signal to flush checkpoints.
func (c *Controller) Shutdown() StopPhase {
	if !c.Running() {
		return StopNotNeeded
	}
	c.Terminate()
	if c.waitTimeout(gracefulStopTimeout) {
		return StopGraceful
	}
	c.Kill()
	c.Wait()
	return StopForced
}

// Close releases the PTY master and lets the output pump wind down. Safe to
// call from multiple cleanup paths.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		_ = c.master.Close()
		// Unread output is discarded so the pump can exit.
		go func() {
			for range c.output {
			}
		}()
	})
}

// exitCodeFrom maps cmd.Wait's error to the child's exit code. Death by
// signal yields a negative code, which still counts as failure under the
// zero-is-success contract.
func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
