package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/axtrace/chessapi/internal/board"
)

var (
	// ErrStartup wraps every failure to spawn or configure the engine.
	ErrStartup = errors.New("engine startup failed")
	// ErrProcess wraps failures of a running engine: crash, broken pipe,
	// hang or malformed output. The process is discarded and the next
	// EnsureStarted spawns a new one.
	ErrProcess = errors.New("engine process failure")
)

// Config configures the engine session.
type Config struct {
	Path   string
	Args   []string
	Env    []string // appended to the service environment for the child
	Logger zerolog.Logger

	Threads      int // UCI Threads
	HashMB       int // UCI Hash
	SkillLevel   int // UCI Skill Level
	MoveOverhead int // UCI Move Overhead (ms)

	StartupTimeout time.Duration // bound on spawn + handshake + configuration
	QuitTimeout    time.Duration // how long Stop waits for a clean exit
	HangGrace      time.Duration // extra time past movetime before a search is declared hung
}

// Session owns the single external engine process. Every interaction with
// the process holds the session token, so only one UCI conversation runs at
// a time; callers above it may be arbitrarily concurrent.
type Session struct {
	cfg  Config
	log  zerolog.Logger
	opts []option

	token  *semaphore.Weighted
	starts singleflight.Group

	// Written only while holding token; read lock-free by the fast path.
	cur atomic.Pointer[process]

	// Stats
	spawns   int64
	analyses int64
	pings    int64
	failures int64
}

// NewSession creates a session. No process is started until EnsureStarted.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("engine path required")
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 1
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}
	if cfg.QuitTimeout == 0 {
		cfg.QuitTimeout = 2 * time.Second
	}
	if cfg.HangGrace == 0 {
		cfg.HangGrace = 10 * time.Second
	}

	return &Session{
		cfg: cfg,
		log: cfg.Logger,
		opts: []option{
			{"Threads", strconv.Itoa(cfg.Threads)},
			{"Hash", strconv.Itoa(cfg.HashMB)},
			{"Skill Level", strconv.Itoa(cfg.SkillLevel)},
			{"Move Overhead", strconv.Itoa(cfg.MoveOverhead)},
		},
		token: semaphore.NewWeighted(1),
	}, nil
}

// EnsureStarted makes sure a live, configured engine process exists.
// Concurrent callers on a cold session share a single spawn attempt and all
// observe its outcome. ctx only bounds how long this caller waits.
func (s *Session) EnsureStarted(ctx context.Context) error {
	if p := s.cur.Load(); p != nil && p.alive() {
		return nil
	}

	ch := s.starts.DoChan("start", func() (any, error) {
		return nil, s.start()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start runs inside the shared flight, so it must not depend on any one
// caller's context.
func (s *Session) start() error {
	_ = s.token.Acquire(context.Background(), 1)
	defer s.token.Release(1)

	if p := s.cur.Load(); p != nil {
		if p.alive() {
			return nil
		}
		s.log.Warn().Int("pid", p.pid()).Msg("engine process is gone, respawning")
		p.kill()
		s.cur.Store(nil)
	}

	atomic.AddInt64(&s.spawns, 1)
	p, err := s.spawn()
	if err != nil {
		atomic.AddInt64(&s.failures, 1)
		s.log.Error().Err(err).Str("path", s.cfg.Path).Msg("engine startup failed")
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	s.cur.Store(p)

	s.log.Info().
		Int("pid", p.pid()).
		Str("engine", p.name).
		Int("threads", s.cfg.Threads).
		Int("hash_mb", s.cfg.HashMB).
		Int("skill_level", s.cfg.SkillLevel).
		Msg("engine started")
	return nil
}

func (s *Session) spawn() (*process, error) {
	deadline := time.Now().Add(s.cfg.StartupTimeout)

	p, err := startProcess(s.cfg.Path, s.cfg.Args, s.cfg.Env, s.log)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", s.cfg.Path, err)
	}
	if err := s.handshake(p, s.opts, deadline); err != nil {
		p.kill()
		return nil, err
	}
	return p, nil
}

// live returns the current process if it can hold a conversation.
// Caller holds the token.
func (s *Session) live() (*process, error) {
	p := s.cur.Load()
	if p == nil {
		return nil, fmt.Errorf("%w: engine is not running", ErrProcess)
	}
	if !p.alive() {
		return nil, fmt.Errorf("%w: engine process has exited", ErrProcess)
	}
	return p, nil
}

// invalidate discards a process after a failed conversation. Caller holds
// the token.
func (s *Session) invalidate(p *process, err error) {
	atomic.AddInt64(&s.failures, 1)
	s.log.Error().Err(err).Int("pid", p.pid()).Msg("engine conversation failed, discarding process")
	p.kill()
	s.cur.CompareAndSwap(p, nil)
}

// Analyze returns the engine's move for pos under limit. Terminal positions
// are answered without consulting the engine. ctx bounds only the wait for
// the token: once the conversation has started it runs to completion, since
// aborting it would desynchronize the shared process.
func (s *Session) Analyze(ctx context.Context, pos board.Position, limit Limit) (Result, error) {
	if reason, over := board.Terminal(pos); over {
		return Result{Kind: KindGameOver, Reason: reason}, nil
	}

	if err := s.token.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer s.token.Release(1)

	p, err := s.live()
	if err != nil {
		return Result{}, err
	}
	atomic.AddInt64(&s.analyses, 1)

	start := time.Now()
	deadline := start.Add(limit.Time + s.cfg.HangGrace)
	res, err := p.search(pos, limit, deadline)
	if err != nil {
		s.invalidate(p, err)
		return Result{}, fmt.Errorf("%w: %w", ErrProcess, err)
	}

	if res.Kind == KindMove {
		legal, err := board.IsLegal(pos, res.Move)
		switch {
		case err != nil:
			s.log.Debug().Err(err).Str("fen", pos.FEN()).Msg("bestmove legality not checked")
		case !legal:
			err := fmt.Errorf("illegal bestmove %q", res.Move)
			s.invalidate(p, err)
			return Result{}, fmt.Errorf("%w: %w", ErrProcess, err)
		}
	}

	s.log.Debug().
		Str("fen", pos.FEN()).
		Str("move", res.Move).
		Int("depth", res.Depth).
		Int("nodes", res.Nodes).
		Int("cp", res.ScoreCP).
		Int("mate", res.Mate).
		Dur("dur", time.Since(start)).
		Msg("analysis complete")
	return res, nil
}

// Ping sends isready and waits up to timeout, including any wait for the
// token. A timeout leaves the process running; its late readyok is
// consumed before the next conversation.
func (s *Session) Ping(ctx context.Context, timeout time.Duration) (PingStatus, error) {
	atomic.AddInt64(&s.pings, 1)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	if err := s.token.Acquire(ctx, 1); err != nil {
		return PingTimeout, fmt.Errorf("engine busy, no answer within %s", timeout)
	}
	defer s.token.Release(1)

	p, err := s.live()
	if err != nil {
		return PingDead, err
	}
	if err := p.send("isready"); err != nil {
		return PingDead, fmt.Errorf("send isready: %w", err)
	}
	p.unanswered++

	err = p.resync(deadline)
	switch {
	case err == nil:
		return PingAlive, nil
	case errors.Is(err, errReadTimeout):
		return PingTimeout, fmt.Errorf("no readyok within %s", timeout)
	default:
		return PingDead, fmt.Errorf("waiting for readyok: %w", err)
	}
}

// Stop quits the engine and waits for it to exit, killing it after
// QuitTimeout. Failures are logged, never returned. Stop on a stopped
// session is a no-op; a later EnsureStarted spawns a fresh process.
func (s *Session) Stop() {
	_ = s.token.Acquire(context.Background(), 1)
	defer s.token.Release(1)

	p := s.cur.Swap(nil)
	if p == nil {
		return
	}

	if err := p.send("quit"); err != nil {
		s.log.Warn().Err(err).Int("pid", p.pid()).Msg("failed to send quit to engine")
	}
	_ = p.stdin.Close()
	p.abandon()

	select {
	case <-p.exited:
	case <-time.After(s.cfg.QuitTimeout):
		s.log.Warn().Int("pid", p.pid()).Dur("timeout", s.cfg.QuitTimeout).Msg("engine did not exit after quit, killing")
		p.kill()
		select {
		case <-p.exited:
		case <-time.After(s.cfg.QuitTimeout):
			s.log.Error().Int("pid", p.pid()).Msg("engine process could not be reaped")
			return
		}
	}

	if p.waitErr != nil && !p.dead.Load() {
		s.log.Warn().Err(p.waitErr).Int("pid", p.pid()).Msg("engine exited with error")
	}
	s.log.Info().Int("pid", p.pid()).Msg("engine stopped")
}

// EngineName returns the name the engine reported in its handshake, or ""
// when no engine is running.
func (s *Session) EngineName() string {
	if p := s.cur.Load(); p != nil {
		return p.name
	}
	return ""
}

// Stats represents the current status of the session.
type Stats struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid,omitempty"`
	Engine   string `json:"engine,omitempty"`
	Spawns   int64  `json:"spawns"`
	Analyses int64  `json:"analyses"`
	Pings    int64  `json:"pings"`
	Failures int64  `json:"failures"`
}

// Stats returns counters and the state of the current process.
func (s *Session) Stats() Stats {
	st := Stats{
		Spawns:   atomic.LoadInt64(&s.spawns),
		Analyses: atomic.LoadInt64(&s.analyses),
		Pings:    atomic.LoadInt64(&s.pings),
		Failures: atomic.LoadInt64(&s.failures),
	}
	if p := s.cur.Load(); p != nil && p.alive() {
		st.Running = true
		st.PID = p.pid()
		st.Engine = p.name
	}
	return st
}
