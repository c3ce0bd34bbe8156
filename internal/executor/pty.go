package executor

import (
	"os"
	"os/exec"

	ptylib "github.com/creack/pty"
)

// startOnPTY launches cmd attached to a fresh pseudo-terminal and returns the
// master side. The slave descriptor is handed to the child and the parent's
// reference is closed as part of the start, so end-of-stream tracking depends
// on the child alone. Running on a terminal keeps the child's stdio
// line-buffered instead of fully block-buffered.
func startOnPTY(cmd *exec.Cmd) (*os.File, error) {
	return ptylib.Start(cmd)
}

// pumpOutput reads the PTY master in bounded chunks and forwards them on out
// in read order. Once the child exits and the slave side is gone the kernel
// fails the next read on the master; that is the normal end of stream, so any
// read error simply closes the channel.
func pumpOutput(master *os.File, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, ptyReadSize)
	for {
		n, err := master.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}
