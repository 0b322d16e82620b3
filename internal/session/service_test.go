package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/livequiz/internal/account"
	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/game"
	"github.com/victornm/livequiz/internal/session"
	"github.com/victornm/livequiz/internal/state"
	"github.com/victornm/livequiz/internal/store"
)

func TestService_StartCreatesNotStartedSession(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)
	require.Len(t, ss.ID, 6, "session id should be six digits")
	require.Equal(t, f.gameID, ss.GameID)
	require.Equal(t, domain.PositionNotStarted, ss.Position)
	require.Empty(t, ss.Players)
}

func TestService_StartUnknownGame(t *testing.T) {
	f := makeFixture(t)

	_, err := f.session.Start(context.Background(), "no-such-game")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_SessionIDsAreUniqueAmongActive(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ss, err := f.session.Start(ctx, f.gameID)
		require.NoError(t, err)
		require.False(t, seen[ss.ID], "session id %s issued twice", ss.ID)
		seen[ss.ID] = true
	}
}

func TestService_StatusTransitions(t *testing.T) {
	// Game with 2 questions: not started -> in progress -> ended, with
	// position only ever moving forward.
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	st, err := f.session.SessionStatus(ctx, ss.ID, "")
	require.NoError(t, err)
	require.Equal(t, session.Status{Started: false, Ended: false}, st)

	positions := []int{0, 1, 2}
	for _, want := range positions {
		pos, err := f.session.Advance(ctx, ss.ID)
		require.NoError(t, err)
		require.Equal(t, want, pos)
	}

	st, err = f.session.SessionStatus(ctx, ss.ID, "")
	require.NoError(t, err)
	require.Equal(t, session.Status{Started: true, Ended: true}, st)

	// Position is monotonic: once ended, Advance fails and position stays.
	_, err = f.session.Advance(ctx, ss.ID)
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestService_StatusMidGame(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)
	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)

	// position = 1 with 2 questions: started, not ended.
	st, err := f.session.SessionStatus(ctx, ss.ID, "")
	require.NoError(t, err)
	require.Equal(t, session.Status{Started: true, Ended: false}, st)
}

func TestService_JoinThenSubmitRoundTrip(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	playerID, err := f.session.Join(ctx, ss.ID, "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, playerID)

	// No question is live yet.
	err = f.session.SubmitAnswers(ctx, ss.ID, playerID, []int{0})
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition))

	pos, err := f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)
	require.Equal(t, 0, pos)

	require.NoError(t, f.session.SubmitAnswers(ctx, ss.ID, playerID, []int{1, 2}))

	results, err := f.session.Results(ctx, ss.ID)
	require.NoError(t, err)
	require.Contains(t, results, playerID)
	require.Equal(t, "Alice", results[playerID].Name)
	require.Equal(t, []int{1, 2}, results[playerID].Answers[pos])

	// Resubmitting for the same position overwrites, never appends.
	require.NoError(t, f.session.SubmitAnswers(ctx, ss.ID, playerID, []int{0}))

	results, err = f.session.Results(ctx, ss.ID)
	require.NoError(t, err)
	require.Equal(t, []int{0}, results[playerID].Answers[pos])
	require.Len(t, results[playerID].Answers, 1)
}

func TestService_SubmitUnknownPlayer(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)

	err = f.session.SubmitAnswers(ctx, ss.ID, "no-such-player", []int{0})
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_JoinUnknownSession(t *testing.T) {
	f := makeFixture(t)

	_, err := f.session.Join(context.Background(), "000000", "Alice")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_JoinPermittedAfterStart(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)

	// No lobby-closed check: late joiners are accepted.
	playerID, err := f.session.Join(ctx, ss.ID, "Late Larry")
	require.NoError(t, err)
	require.NotEmpty(t, playerID)
}

func TestService_CurrentQuestion(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	ss, err := f.session.Start(ctx, f.gameID)
	require.NoError(t, err)

	playerID, err := f.session.Join(ctx, ss.ID, "Alice")
	require.NoError(t, err)

	// Nil while the session has not started.
	q, err := f.session.CurrentQuestion(ctx, ss.ID, playerID)
	require.NoError(t, err)
	require.Nil(t, q)

	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)

	q, err = f.session.CurrentQuestion(ctx, ss.ID, playerID)
	require.NoError(t, err)
	require.Equal(t, "q1", q.ID)
	require.Equal(t, "Capital of France?", q.Text)
	require.Equal(t, 30, q.Duration)
	require.Equal(t, 0, q.Position)
	require.Equal(t, []string{"Paris", "Lyon", "Nice"}, q.Options, "options expose text only")

	// Nil again once the session has ended.
	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)
	_, err = f.session.Advance(ctx, ss.ID)
	require.NoError(t, err)

	q, err = f.session.CurrentQuestion(ctx, ss.ID, playerID)
	require.NoError(t, err)
	require.Nil(t, q)
}

func TestService_CurrentQuestionUnknownSession(t *testing.T) {
	f := makeFixture(t)

	_, err := f.session.CurrentQuestion(context.Background(), "000000", "p1")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_ResultsUnknownSession(t *testing.T) {
	f := makeFixture(t)

	_, err := f.session.Results(context.Background(), "000000")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

type fixture struct {
	session *session.Service
	gameID  string
}

func makeFixture(t *testing.T) fixture {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	e := state.New(state.Config{Store: store.NewRedis(rc, "test:snapshot")})
	t.Cleanup(e.Close)
	require.NoError(t, e.Hydrate(ctx))

	accounts := account.NewService(account.Config{State: e})
	require.NoError(t, accounts.Register(ctx, account.RegisterRequest{
		Email:    "alice@example.com",
		Password: "s3cret",
	}))

	games := game.NewService(game.Config{State: e})
	g, err := games.Create(ctx, game.CreateRequest{
		Owner: "alice@example.com",
		Name:  "Capitals",
		Questions: []domain.Question{
			{ID: "q1", Text: "Capital of France?", Duration: 30, Options: []domain.AnswerOption{
				{Text: "Paris", Correct: true},
				{Text: "Lyon"},
				{Text: "Nice"},
			}},
			{ID: "q2", Text: "Capital of Spain?", Duration: 20, Options: []domain.AnswerOption{
				{Text: "Madrid", Correct: true},
				{Text: "Barcelona"},
			}},
		},
	})
	require.NoError(t, err)

	return fixture{
		session: session.NewService(session.Config{State: e}),
		gameID:  g.ID,
	}
}
