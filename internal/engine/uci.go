package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/axtrace/chessapi/internal/board"
)

// option is one setoption applied after the uci handshake.
type option struct {
	name  string
	value string
}

// handshake runs uci/uciok, applies opts and waits for readyok.
func (s *Session) handshake(p *process, opts []option, deadline time.Time) error {
	if err := p.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	for {
		line, err := p.readLine(deadline)
		if err != nil {
			return fmt.Errorf("waiting for uciok: %w", err)
		}
		if line == "uciok" {
			break
		}
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			p.name = strings.TrimSpace(name)
			continue
		}
		if name, ok := parseOptionName(line); ok {
			p.options[strings.ToLower(name)] = true
		}
	}

	for _, opt := range opts {
		if !p.options[strings.ToLower(opt.name)] {
			s.log.Warn().Str("option", opt.name).Msg("engine does not advertise option, skipping")
			continue
		}
		if err := p.send(fmt.Sprintf("setoption name %s value %s", opt.name, opt.value)); err != nil {
			return fmt.Errorf("set option %s: %w", opt.name, err)
		}
	}

	if err := p.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	p.unanswered++
	if err := p.resync(deadline); err != nil {
		return fmt.Errorf("waiting for readyok: %w", err)
	}
	return nil
}

// parseOptionName extracts the name from
// "option name Skill Level type spin default 20 min 0 max 20".
func parseOptionName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "option name ")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, " type ")
	name = strings.TrimSpace(name)
	return name, name != ""
}

// resync drains output until every outstanding isready has been answered.
func (p *process) resync(deadline time.Time) error {
	for p.unanswered > 0 {
		line, err := p.readLine(deadline)
		if err != nil {
			return err
		}
		if line == "readyok" {
			p.unanswered--
		}
	}
	return nil
}

// goCommand renders the three search bounds on one line so the engine stops
// at whichever triggers first.
func (l Limit) goCommand() string {
	depth := max(l.Depth, 1)
	nodes := max(l.Nodes, 1)
	ms := max(l.Time.Milliseconds(), 1)
	return fmt.Sprintf("go depth %d movetime %d nodes %d", depth, ms, nodes)
}

// search sends the position and go command and reads until bestmove.
func (p *process) search(pos board.Position, limit Limit, deadline time.Time) (Result, error) {
	if err := p.resync(deadline); err != nil {
		return Result{}, fmt.Errorf("resync: %w", err)
	}
	if err := p.send("position fen " + pos.FEN()); err != nil {
		return Result{}, fmt.Errorf("send position: %w", err)
	}
	if err := p.send(limit.goCommand()); err != nil {
		return Result{}, fmt.Errorf("send go: %w", err)
	}

	var res Result
	for {
		line, err := p.readLine(deadline)
		if errors.Is(err, errReadTimeout) {
			return Result{}, fmt.Errorf("no bestmove before deadline: %w", err)
		}
		if err != nil {
			return Result{}, fmt.Errorf("reading search output: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "info "):
			res.applyInfo(line)
		case strings.HasPrefix(line, "bestmove"):
			return res.withBestMove(line)
		}
	}
}

// applyInfo records depth, nodes and score from an info line. Lines without
// a score (currmove updates, info string) only refresh what they carry.
func (r *Result) applyInfo(line string) {
	parts := strings.Fields(line)
	for i := 1; i < len(parts)-1; i++ {
		switch parts[i] {
		case "depth":
			if n, err := strconv.Atoi(parts[i+1]); err == nil {
				r.Depth = n
			}
		case "nodes":
			if n, err := strconv.Atoi(parts[i+1]); err == nil {
				r.Nodes = n
			}
		case "score":
			if i+2 >= len(parts) {
				continue
			}
			n, err := strconv.Atoi(parts[i+2])
			if err != nil {
				continue
			}
			switch parts[i+1] {
			case "cp":
				r.ScoreCP, r.Mate = n, 0
			case "mate":
				r.ScoreCP, r.Mate = 0, n
			}
		case "string", "pv":
			// Everything after these is free text or a move list.
			return
		}
	}
}

func (r Result) withBestMove(line string) (Result, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "bestmove" {
		return Result{}, fmt.Errorf("malformed bestmove line %q", line)
	}
	if parts[1] == "(none)" || parts[1] == "0000" {
		r.Kind = KindNoMoves
		return r, nil
	}

	mv, err := board.NormalizeUCI(parts[1])
	if err != nil {
		return Result{}, fmt.Errorf("malformed bestmove %q: %w", parts[1], err)
	}
	r.Kind = KindMove
	r.Move = mv
	if len(parts) >= 4 && parts[2] == "ponder" {
		if ponder, err := board.NormalizeUCI(parts[3]); err == nil {
			r.Ponder = ponder
		}
	}
	return r, nil
}
