package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/database"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func champions(nb int, private bool) CreateParams {
	return CreateParams{NbPlayers: nb, Mode: models.ModeChampions, Map: models.MapClassic, Private: private}
}

func TestChampionsSelectionResolvesByVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l, owner := f.create(t, champions(4, true))
	var guests []uuid.UUID
	for i := 0; i < 3; i++ {
		guests = append(guests, f.join(t, l.ID))
	}
	readyAll(t, f, l)

	_, err := f.svc.VoteMap(ctx, l.ID, owner, models.MapSpace)
	assert.ErrorIs(t, err, ErrNotSelecting)

	got, err := f.svc.StartGame(ctx, l.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.StateSelection, got.State)
	starts := f.notify.named(EventSelectionStart)
	require.Len(t, starts, 1)
	assert.Equal(t, models.ChampionPaddles, starts[0].payload.(SelectionStart).Paddles)

	_, err = f.svc.SelectPaddle(ctx, l.ID, owner, models.PaddleBasic)
	assert.ErrorIs(t, err, ErrInvalidPaddle)
	_, err = f.svc.VoteMap(ctx, l.ID, owner, "MOON")
	assert.ErrorIs(t, err, ErrInvalidMap)

	votes, err := f.svc.VoteMap(ctx, l.ID, owner, models.MapSpace)
	require.NoError(t, err)
	assert.Len(t, votes, 4)
	_, err = f.svc.VoteMap(ctx, l.ID, guests[0], models.MapSpace)
	require.NoError(t, err)
	_, err = f.svc.VoteMap(ctx, l.ID, guests[1], models.MapClassic)
	require.NoError(t, err)
	assert.Len(t, f.notify.named(EventVote), 3)

	voters := 0
	tally, err := f.svc.Votes(ctx, l.ID)
	require.NoError(t, err)
	for _, v := range tally {
		if v.Map != nil {
			voters++
		}
	}
	assert.Equal(t, 3, voters)

	for i, id := range append([]uuid.UUID{owner}, guests...) {
		_, err := f.svc.SelectPaddle(ctx, l.ID, id, models.ChampionPaddles[i])
		require.NoError(t, err)
	}

	final := f.lobby(t, l.ID)
	assert.Equal(t, models.StateGame, final.State)
	assert.Equal(t, models.MapSpace, final.Map)
	require.Equal(t, 1, f.launcher.launches())
	launched := f.launcher.launched[0]
	require.NotNil(t, launched.Member(owner).PaddleType)
	assert.Equal(t, models.PaddleRed, *launched.Member(owner).PaddleType)

	_, err = f.svc.SelectPaddle(ctx, l.ID, owner, models.PaddleBlue)
	assert.ErrorIs(t, err, ErrNotSelecting)
}

func TestSelectionTimeoutForcesResolution(t *testing.T) {
	notify := newRecordingNotifier()
	launcher := &fakeLauncher{}
	svc := NewService(database.NewMemoryStore(), notify, launcher, 20*time.Millisecond, testLogger())
	defer svc.Close()
	ctx := context.Background()

	owner := uuid.New()
	l, err := svc.Create(ctx, owner, champions(2, true))
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, l.ID, owner)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return launcher.launches() == 1 }, time.Second, 5*time.Millisecond)
	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateGame, got.State)
	assert.Equal(t, models.MapClassic, got.Map)
	assert.Nil(t, got.Member(owner).PaddleType)
}

func TestSelectionTimerStoppedWhenLobbyCloses(t *testing.T) {
	notify := newRecordingNotifier()
	launcher := &fakeLauncher{}
	svc := NewService(database.NewMemoryStore(), notify, launcher, 20*time.Millisecond, testLogger())
	defer svc.Close()
	ctx := context.Background()

	owner := uuid.New()
	l, err := svc.Create(ctx, owner, champions(2, true))
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, l.ID, owner)
	require.NoError(t, err)
	require.NoError(t, svc.Leave(ctx, l.ID, owner))

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, launcher.launches())
}

func TestPublicChampionsMergeIgnoresMap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, ownerA := f.create(t, champions(2, false))
	p := champions(2, false)
	p.Map = models.MapSpace
	b, ownerB := f.create(t, p)

	_, err := f.svc.StartGame(ctx, a.ID, ownerA)
	require.NoError(t, err)
	got, err := f.svc.StartGame(ctx, b.ID, ownerB)
	require.NoError(t, err)
	assert.Equal(t, models.StateSelection, got.State)
	assert.Len(t, got.Members, 2)
}

func TestMajority(t *testing.T) {
	vote := func(m models.MapName) *models.MapName { return &m }
	l := &models.Lobby{Map: models.MapClassic}
	assert.Equal(t, models.MapClassic, majority(l), "no ballots keep the configured map")

	l.Members = []*models.LobbyMember{{MapVote: vote(models.MapSpace)}, {}}
	assert.Equal(t, models.MapSpace, majority(l))

	l.Members = append(l.Members, &models.LobbyMember{MapVote: vote(models.MapClassic)})
	l.Map = models.MapSpace
	assert.Equal(t, models.MapSpace, majority(l), "a tie keeps the configured map")

	l.Map = models.MapClassic
	assert.Equal(t, models.MapClassic, majority(l))
}
