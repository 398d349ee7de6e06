package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionName(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"option name Skill Level type spin default 20 min 0 max 20", "Skill Level", true},
		{"option name Hash type spin default 16 min 1 max 33554432", "Hash", true},
		{"option name Clear Hash type button", "Clear Hash", true},
		{"id name Stockfish 16", "", false},
		{"option name ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseOptionName(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimitGoCommand(t *testing.T) {
	tests := []struct {
		name  string
		limit Limit
		want  string
	}{
		{"all bounds", Limit{Depth: 10, Time: 10 * time.Millisecond, Nodes: 100}, "go depth 10 movetime 10 nodes 100"},
		{"two seconds", Limit{Depth: 1, Time: 2 * time.Second, Nodes: 5000}, "go depth 1 movetime 2000 nodes 5000"},
		{"floors", Limit{Depth: 0, Time: 200 * time.Microsecond, Nodes: -3}, "go depth 1 movetime 1 nodes 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limit.goCommand())
		})
	}
}

func TestResultApplyInfo(t *testing.T) {
	var r Result
	r.applyInfo("info depth 12 seldepth 18 multipv 1 score cp -35 nodes 120034 nps 900000 time 133 pv e7e5 g1f3")
	assert.Equal(t, 12, r.Depth)
	assert.Equal(t, 120034, r.Nodes)
	assert.Equal(t, -35, r.ScoreCP)
	assert.Equal(t, 0, r.Mate)

	r.applyInfo("info depth 13 score mate 3 nodes 130000 pv d8h4")
	assert.Equal(t, 13, r.Depth)
	assert.Equal(t, 3, r.Mate)
	assert.Equal(t, 0, r.ScoreCP)

	// Free text after "string" is not parsed.
	r.applyInfo("info string depth 99 nodes 1")
	assert.Equal(t, 13, r.Depth)

	r.applyInfo("info depth 14 currmove e2e4 currmovenumber 1")
	assert.Equal(t, 14, r.Depth)
	assert.Equal(t, 130000, r.Nodes)
}

func TestResultWithBestMove(t *testing.T) {
	tests := []struct {
		line    string
		kind    Kind
		move    string
		ponder  string
		wantErr bool
	}{
		{"bestmove e2e4", KindMove, "e2e4", "", false},
		{"bestmove e2e4 ponder e7e5", KindMove, "e2e4", "e7e5", false},
		{"bestmove a7a8Q", KindMove, "a7a8q", "", false},
		{"bestmove (none)", KindNoMoves, "", "", false},
		{"bestmove 0000", KindNoMoves, "", "", false},
		{"bestmove", 0, "", "", true},
		{"bestmove e2", 0, "", "", true},
		{"bestmoves e2e4", 0, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res, err := Result{}.withBestMove(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.move, res.Move)
			assert.Equal(t, tt.ponder, res.Ponder)
		})
	}
}

func TestKindAndPingStatusStrings(t *testing.T) {
	assert.Equal(t, "move", KindMove.String())
	assert.Equal(t, "game_over", KindGameOver.String())
	assert.Equal(t, "no_moves", KindNoMoves.String())
	assert.Equal(t, "alive", PingAlive.String())
	assert.Equal(t, "timeout", PingTimeout.String())
	assert.Equal(t, "dead", PingDead.String())
}
