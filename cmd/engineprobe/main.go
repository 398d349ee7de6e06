// Command engineprobe checks an engine install the way the service uses it:
// start a session, ping it, ask for a move, then evaluate the same position
// through an independent UCI client for comparison.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/freeeve/uci"
	"github.com/spf13/pflag"

	"github.com/axtrace/chessapi/internal/board"
	"github.com/axtrace/chessapi/internal/config"
	"github.com/axtrace/chessapi/internal/engine"
	"github.com/axtrace/chessapi/internal/logx"
)

func main() {
	defaultStockfish := config.DefaultStockfishPath(runtime.GOOS)
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		defaultStockfish = envPath
	}

	var (
		stockfishPath = pflag.String("stockfish", defaultStockfish, "path to the UCI engine executable")
		fen           = pflag.String("fen", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "position to analyze")
		depth         = pflag.Int("depth", 10, "search depth")
		moveTime      = pflag.Duration("time", 100*time.Millisecond, "search time for the session probe")
		nodes         = pflag.Int("nodes", 100000, "node limit for the session probe")
		crossDepth    = pflag.Int("cross-depth", 12, "depth for the independent evaluation (0 = skip)")
		pingTimeout   = pflag.Duration("ping-timeout", time.Second, "isready timeout")
		logLevel      = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	logger := logx.New(logx.Options{Level: *logLevel})

	pos, err := board.Validate(*fen)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad position")
	}

	session, err := engine.NewSession(engine.Config{
		Path:   *stockfishPath,
		Logger: logger.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create session")
	}
	defer session.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := session.EnsureStarted(ctx); err != nil {
		logger.Error().Err(err).Msg("engine failed to start")
		session.Stop()
		os.Exit(1)
	}
	logger.Info().Str("engine", session.EngineName()).Dur("dur", time.Since(start)).Msg("engine started")

	status, err := session.Ping(ctx, *pingTimeout)
	if err != nil {
		logger.Error().Err(err).Str("status", status.String()).Msg("ping failed")
		session.Stop()
		os.Exit(1)
	}
	logger.Info().Str("status", status.String()).Msg("ping")

	start = time.Now()
	res, err := session.Analyze(ctx, pos, engine.Limit{Depth: *depth, Time: *moveTime, Nodes: *nodes})
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		session.Stop()
		os.Exit(1)
	}
	ev := logger.Info().
		Str("kind", res.Kind.String()).
		Dur("dur", time.Since(start))
	switch res.Kind {
	case engine.KindMove:
		ev = ev.Str("move", res.Move).Str("ponder", res.Ponder).Int("depth", res.Depth).Int("nodes", res.Nodes).Int("cp", res.ScoreCP).Int("mate", res.Mate)
	case engine.KindGameOver:
		ev = ev.Str("reason", string(res.Reason))
	}
	ev.Msg("session analysis")

	if *crossDepth > 0 && res.Kind == engine.KindMove {
		if err := crossCheck(*stockfishPath, pos.FEN(), *crossDepth); err != nil {
			logger.Warn().Err(err).Msg("independent evaluation failed")
		}
	}

	st := session.Stats()
	fmt.Printf("spawns=%d analyses=%d pings=%d failures=%d\n", st.Spawns, st.Analyses, st.Pings, st.Failures)
}

// crossCheck evaluates fen with a separate engine process driven by the uci
// package and prints the deepest score.
func crossCheck(path, fen string, depth int) error {
	eng, err := uci.NewEngine(path)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer eng.Close()

	if err := eng.SetOptions(uci.Options{Hash: 16, Threads: 1, MultiPV: 1}); err != nil {
		return fmt.Errorf("set options: %w", err)
	}
	if err := eng.SetFEN(fen); err != nil {
		return fmt.Errorf("set FEN: %w", err)
	}
	results, err := eng.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		return fmt.Errorf("go depth %d: %w", depth, err)
	}
	if len(results.Results) == 0 {
		return fmt.Errorf("no results from engine")
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}
	if best.Mate {
		fmt.Printf("independent eval: depth=%d mate=%d\n", best.Depth, best.Score)
	} else {
		fmt.Printf("independent eval: depth=%d cp=%d\n", best.Depth, best.Score)
	}
	return nil
}
