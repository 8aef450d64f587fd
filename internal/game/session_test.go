// internal/game/session_test.go
package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/arena"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 60

// setupTestSession creates a 1v1 classic session with fixed player IDs.
func setupTestSession(t *testing.T, mode models.GameMode, maxDuration time.Duration, cfg Config) (*Session, []uuid.UUID) {
	t.Helper()
	ids := []uuid.UUID{
		uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		uuid.MustParse("00000000-0000-0000-0000-000000000002"),
	}
	roster := []PlayerSpec{
		{UserID: ids[0], Team: false, Paddle: models.PaddleBlue},
		{UserID: ids[1], Team: true, Paddle: models.PaddleRed},
	}
	s, err := NewSession(uuid.New(), mode, models.MapClassic, maxDuration, roster, cfg)
	require.NoError(t, err)
	return s, ids
}

func TestNewSessionOrdersTeams(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	roster := []PlayerSpec{
		{UserID: a, Team: true},
		{UserID: b, Team: false},
		{UserID: c, Team: true},
		{UserID: d, Team: false},
	}
	s, err := NewSession(uuid.New(), models.ModeClassic, models.MapSpace, 0, roster, DefaultConfig())
	require.NoError(t, err)

	info := s.Info()
	require.Len(t, info.Players, 4)
	for i, want := range []uuid.UUID{b, d, a, c} {
		assert.Equal(t, want, info.Players[i].ID)
	}
	assert.Equal(t, models.MapSpace, s.Map())

	snap := s.Snapshot()
	require.Len(t, snap.Paddles, 4)
	assert.Less(t, snap.Paddles[0].Center.Z, 0.0)
	assert.Greater(t, snap.Paddles[2].Center.Z, 0.0)
	assert.NotEqual(t, snap.Paddles[0].Center.X, snap.Paddles[1].Center.X)
}

func TestNewSessionRejectsOneSidedRoster(t *testing.T) {
	_, err := NewSession(uuid.New(), models.ModeClassic, models.MapClassic, 0,
		[]PlayerSpec{{UserID: uuid.New(), Team: false}}, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyRoster)

	_, err = NewSession(uuid.New(), models.ModeClassic, "MOON", 0,
		[]PlayerSpec{{UserID: uuid.New()}, {UserID: uuid.New(), Team: true}}, DefaultConfig())
	assert.Error(t, err)
}

func TestClassicModeForcesBasicPaddles(t *testing.T) {
	s, _ := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	for _, p := range s.Snapshot().Paddles {
		assert.Equal(t, models.PaddleBasic, p.Variant)
	}

	c, _ := setupTestSession(t, models.ModeChampions, 0, DefaultConfig())
	snap := c.Snapshot()
	assert.Equal(t, models.PaddleBlue, snap.Paddles[0].Variant)
	assert.Equal(t, models.PaddleRed, snap.Paddles[1].Variant)
}

func TestAdvanceIsDeterministic(t *testing.T) {
	run := func() []Snapshot {
		s, ids := setupTestSession(t, models.ModeChampions, 0, DefaultConfig())
		var out []Snapshot
		for i := 0; i < 600; i++ {
			switch i % 90 {
			case 0:
				cmd, err := Hold("x", 1)
				require.NoError(t, err)
				s.ApplyPaddleCommand(ids[0], cmd)
			case 30:
				s.ApplyPaddleCommand(ids[1], LeftMove())
				s.ApplyPaddleCommand(ids[0], Command{Kind: CommandAbility})
			case 60:
				s.Idle(ids[0])
			}
			out = append(out, s.Advance(dt).Snapshot)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestUnknownPlayerCommandIsNoop(t *testing.T) {
	s, _ := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	ref, _ := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())

	assert.False(t, s.ApplyPaddleCommand(uuid.New(), RightMove()))

	assert.Equal(t, ref.Advance(dt).Snapshot, s.Advance(dt).Snapshot)
}

func TestCommandsApplyAtTickStart(t *testing.T) {
	s, ids := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	cmd, err := Hold("y", -1)
	require.NoError(t, err)

	require.True(t, s.ApplyPaddleCommand(ids[0], cmd))
	assert.Zero(t, s.Snapshot().Paddles[0].Center.Y, "queued input must not apply before the tick")

	s.Advance(dt)
	speed := arena.VariantFor(models.PaddleBasic).Speed
	assert.InDelta(t, -speed*dt, s.Snapshot().Paddles[0].Center.Y, 1e-9)

	s.Advance(dt)
	assert.InDelta(t, -2*speed*dt, s.Snapshot().Paddles[0].Center.Y, 1e-9, "held input keeps moving")

	s.Idle(ids[0])
	s.Advance(dt)
	assert.InDelta(t, -2*speed*dt, s.Snapshot().Paddles[0].Center.Y, 1e-9)
}

func TestNudgeMovesOneTick(t *testing.T) {
	s, ids := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	s.ApplyPaddleCommand(ids[1], RightMove())
	s.Advance(dt)
	s.Advance(dt)

	speed := arena.VariantFor(models.PaddleBasic).Speed
	assert.InDelta(t, speed*dt, s.Snapshot().Paddles[1].Center.X, 1e-9)
}

func TestGoalResetsBallAndScoresOnce(t *testing.T) {
	s, _ := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	s.ball.Center = arena.Vec(6, 0, 17.9)
	s.ball.Velocity = arena.Vec(0, 0, 30)

	res := s.Advance(dt)

	goals := res.Goals()
	require.Len(t, goals, 1)
	assert.False(t, goals[0].Team, "the +z goal belongs to team false's attack")
	assert.Equal(t, Score{False: 1}, res.Snapshot.Score)
	assert.Equal(t, arena.Vec(0, 0, 0), res.Snapshot.Ball.Center)
	assert.Equal(t, DefaultConfig().BallVelocity, res.Snapshot.Ball.Velocity)
	assert.False(t, res.Over)
}

func TestScoreLimitEndsMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScoreLimit = 1
	s, ids := setupTestSession(t, models.ModeClassic, 0, cfg)
	s.ball.Center = arena.Vec(6, 0, -17.9)
	s.ball.Velocity = arena.Vec(0, 0, -30)

	res := s.Advance(dt)

	require.True(t, res.Over)
	require.NotNil(t, res.Winner)
	assert.True(t, *res.Winner)
	assert.True(t, s.Over())

	// A finished match ignores input and no longer ticks.
	assert.False(t, s.ApplyPaddleCommand(ids[0], RightMove()))
	again := s.Advance(dt)
	assert.True(t, again.Over)
	assert.Equal(t, res.Snapshot.Tick, again.Snapshot.Tick)
}

func TestMaxDurationEndsMatchInDraw(t *testing.T) {
	s, _ := setupTestSession(t, models.ModeClassic, time.Second, DefaultConfig())

	var res TickResult
	for i := 0; i < 59; i++ {
		res = s.Advance(dt)
		require.False(t, res.Over, "tick %d", i+1)
	}
	res = s.Advance(dt)

	assert.True(t, res.Over)
	assert.Nil(t, res.Winner)
	assert.Equal(t, uint64(60), res.Snapshot.Tick)
}

func TestAbilityOnlyInChampions(t *testing.T) {
	classic, ids := setupTestSession(t, models.ModeClassic, 0, DefaultConfig())
	classic.ApplyPaddleCommand(ids[0], Command{Kind: CommandAbility})
	assert.Empty(t, classic.Advance(dt).Events)

	champ, ids := setupTestSession(t, models.ModeChampions, 0, DefaultConfig())
	before := champ.ball.Velocity
	champ.ApplyPaddleCommand(ids[0], Command{Kind: CommandAbility})
	res := champ.Advance(dt)

	require.Len(t, res.Events, 1)
	assert.Equal(t, EventAbility, res.Events[0].Type)
	assert.Equal(t, ids[0], res.Events[0].PlayerID)
	assert.Equal(t, "slow", res.Events[0].Ability)
	assert.InDelta(t, before.Length()/2, res.Snapshot.Ball.Velocity.Length(), 1e-9)
	assert.Positive(t, res.Snapshot.Paddles[0].Cooldown)
}

func TestAbilityOnGoalTickFiresAtKickoff(t *testing.T) {
	s, ids := setupTestSession(t, models.ModeChampions, 0, DefaultConfig())
	s.ball.Center = arena.Vec(6, 0, 17.9)
	s.ball.Velocity = arena.Vec(0, 0, 30)
	s.ApplyPaddleCommand(ids[1], Command{Kind: CommandAbility})

	res := s.Advance(dt)
	require.Len(t, res.Goals(), 1)
	require.Len(t, res.Events, 1)
	assert.False(t, res.Snapshot.Paddles[1].Charged)
	assert.Zero(t, res.Snapshot.Paddles[1].Cooldown)

	res = s.Advance(dt)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventAbility, res.Events[0].Type)
	assert.Equal(t, ids[1], res.Events[0].PlayerID)
	assert.True(t, res.Snapshot.Paddles[1].Charged)
	assert.Positive(t, res.Snapshot.Paddles[1].Cooldown)
}

func TestInfoDescribesField(t *testing.T) {
	s, ids := setupTestSession(t, models.ModeClassic, 90*time.Second, DefaultConfig())
	info := s.Info()

	assert.Equal(t, s.LobbyID, info.LobbyID)
	assert.Len(t, info.Walls, 4)
	assert.Len(t, info.Goals, 2)
	require.Len(t, info.Players, 2)
	assert.Equal(t, ids[0], info.Players[0].ID)
	assert.Equal(t, 90.0, info.MaxDuration)
	assert.Equal(t, 5, info.ScoreLimit)

	rec := s.Record(time.Now())
	assert.Equal(t, s.ID, rec.MatchID)
	assert.Len(t, rec.Players, 2)
}

func TestParseCommands(t *testing.T) {
	_, err := Hold("z", 1)
	assert.Error(t, err)
	_, err = Hold("x", 2)
	assert.Error(t, err)

	cmd, err := Hold("Y", -0.5)
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: CommandMove, Axis: arena.AxisY, Direction: -0.5}, cmd)
}
