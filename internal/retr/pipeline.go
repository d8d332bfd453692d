// Package retr implements the RETR streaming pipeline (spec.md §4.5):
// a three-process chain — cat-equivalent, transformer, byte-stuffer —
// whose final read end the reactor streams into a client's outbound
// queue via a Splitter, without ever buffering the whole body in this
// process.
package retr

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Pipeline is one running RETR transformation chain.
type Pipeline struct {
	cat         *exec.Cmd
	transformer *exec.Cmd
	stuffer     *exec.Cmd
	outR        int
}

// Start builds the pipeline equivalent to `cat <path> | transformerCmd |
// bytestufferCmd` (spec.md §4.5 "Construction") and starts all three
// children. Every plumbing fd not owned by a child, or not the final
// read end, is closed in the parent before Start returns — grounded on
// the close-unused-ends discipline in the teacher's
// internal/pop3/subprocess.go.
func Start(path, transformerCmd, bytestufferCmd string) (*Pipeline, error) {
	catR, catW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("retr: pipe: %w", err)
	}
	xfR, xfW, err := os.Pipe()
	if err != nil {
		catR.Close()
		catW.Close()
		return nil, fmt.Errorf("retr: pipe: %w", err)
	}

	// The final pipe is read directly by the reactor's raw poll loop,
	// so its read end is created non-blocking up front; unlike the two
	// intermediate pipes, it is never wrapped behind os/exec plumbing.
	outR, outW, err := nonblockingPipe()
	if err != nil {
		catR.Close()
		catW.Close()
		xfR.Close()
		xfW.Close()
		return nil, fmt.Errorf("retr: pipe: %w", err)
	}

	cat := exec.Command("cat", path)
	cat.Stdout = catW
	cat.Stderr = os.Stderr

	transformer := buildCommand(transformerCmd)
	transformer.Stdin = catR
	transformer.Stdout = xfW
	transformer.Stderr = os.Stderr

	stuffer := buildCommand(bytestufferCmd)
	stuffer.Stdin = xfR
	stuffer.Stdout = outW
	stuffer.Stderr = os.Stderr

	if err := cat.Start(); err != nil {
		catR.Close()
		catW.Close()
		xfR.Close()
		xfW.Close()
		outW.Close()
		unix.Close(outR)
		return nil, fmt.Errorf("retr: start cat: %w", err)
	}
	if err := transformer.Start(); err != nil {
		cat.Process.Kill()
		catR.Close()
		catW.Close()
		xfR.Close()
		xfW.Close()
		outW.Close()
		unix.Close(outR)
		return nil, fmt.Errorf("retr: start transformer: %w", err)
	}
	if err := stuffer.Start(); err != nil {
		cat.Process.Kill()
		transformer.Process.Kill()
		catR.Close()
		catW.Close()
		xfR.Close()
		xfW.Close()
		outW.Close()
		unix.Close(outR)
		return nil, fmt.Errorf("retr: start bytestuffer: %w", err)
	}

	// Parent relinquishes every fd now owned exclusively by a child.
	catR.Close()
	catW.Close()
	xfR.Close()
	xfW.Close()
	outW.Close()

	return &Pipeline{cat: cat, transformer: transformer, stuffer: stuffer, outR: outR}, nil
}

// nonblockingPipe creates a pipe and puts its read end into non-blocking
// mode, for use directly with the reactor's unix.Read-based poll loop.
// O_CLOEXEC keeps this read end, which the parent holds open for the
// lifetime of the streamed RETR, out of every later RETR pipeline's
// forked children (spec.md §4.5); the write end's copy of the flag is
// immaterial since exec.Cmd dup2s it into the byte-stuffer's stdout,
// which clears close-on-exec on the child's side. The write end is
// wrapped as an *os.File so it can be assigned to an exec.Cmd's Stdout.
func nonblockingPipe() (readFD int, writeFile *os.File, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return -1, nil, err
	}
	return fds[0], os.NewFile(uintptr(fds[1]), "retr-pipeline-out"), nil
}

func buildCommand(cmdline string) *exec.Cmd {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return exec.Command("cat")
	}
	return exec.Command(fields[0], fields[1:]...)
}

// ReadFD returns the non-blocking read end of the final pipe. Register
// it with a reactor via Reactor.StreamFile; Close releases it once the
// reactor reports the source drained.
func (p *Pipeline) ReadFD() int {
	return p.outR
}

// Close releases the final pipe's read end. Safe to call once, after
// the reactor's drain callback fires.
func (p *Pipeline) Close() error {
	return unix.Close(p.outR)
}

// Cmds returns the three child processes (cat, transformer, byte-stuffer)
// in pipeline order. Reaper does not use it; it reaps with wait4(-1).
func (p *Pipeline) Cmds() []*exec.Cmd {
	return []*exec.Cmd{p.cat, p.transformer, p.stuffer}
}
