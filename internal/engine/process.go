package engine

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var errReadTimeout = errors.New("timed out waiting for engine output")

// process is one running engine executable. All methods except alive and
// kill must be called while holding the session token.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines  chan string   // stdout, one line per element; closed at EOF
	eof    chan struct{} // closed when the stdout reader stops
	exited chan struct{} // closed after cmd.Wait returns
	quit   chan struct{} // closed to stop the reader without waiting for EOF

	quitOnce sync.Once
	dead     atomic.Bool
	waitErr  error

	// Filled in by the handshake before the process is published.
	name    string
	options map[string]bool

	// isready probes whose readyok has not been read yet.
	unanswered int
}

func startProcess(path string, args, env []string, log zerolog.Logger) (*process, error) {
	cmd := exec.Command(path, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stderr = log.With().Str("stream", "stderr").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan string, 64),
		eof:     make(chan struct{}),
		exited:  make(chan struct{}),
		quit:    make(chan struct{}),
		options: make(map[string]bool),
	}
	go p.readLoop(stdout)
	return p, nil
}

func (p *process) readLoop(r io.Reader) {
	defer func() {
		close(p.lines)
		close(p.eof)
		p.waitErr = p.cmd.Wait()
		close(p.exited)
	}()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case p.lines <- sc.Text():
		case <-p.quit:
			return
		}
	}
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// alive reports whether the process can still hold a conversation.
func (p *process) alive() bool {
	if p.dead.Load() {
		return false
	}
	select {
	case <-p.eof:
		return false
	default:
		return true
	}
}

func (p *process) send(cmd string) error {
	_, err := io.WriteString(p.stdin, cmd+"\n")
	return err
}

// readLine returns the next stdout line, io.ErrUnexpectedEOF once the engine
// has closed its output, or errReadTimeout after deadline.
func (p *process) readLine(deadline time.Time) (string, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(line), nil
	case <-timer.C:
		return "", errReadTimeout
	}
}

// abandon stops the stdout reader so the process can be reaped even if it
// keeps printing.
func (p *process) abandon() {
	p.quitOnce.Do(func() { close(p.quit) })
}

func (p *process) kill() {
	p.dead.Store(true)
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.stdin.Close()
	p.abandon()
}
