// Package session drives the live game-flow state machine: NotStarted
// (position -1) -> InProgress (0..N-1) -> Ended (>= N), with position moving
// strictly forward.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/event"
	"github.com/victornm/livequiz/internal/state"
)

const (
	// Session ids are drawn from [idBase, idBase+idSpace): six digits, easy
	// for players to type.
	idBase  = 100000
	idSpace = 900000

	maxIDAttempts = 10
)

type Config struct {
	State    *state.Engine
	EventBus *event.Bus
}

type Service struct {
	state *state.Engine
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		state: c.State,
		eb:    c.EventBus,
	}
}

// Start creates a new session for the game in the NotStarted state and
// returns a copy of it.
func (s *Service) Start(ctx context.Context, gameID string) (*domain.Session, error) {
	var created *domain.Session
	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		if _, ok := snap.Games[gameID]; !ok {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("game not found: %s", gameID))
		}

		id, err := newSessionID(snap)
		if err != nil {
			return errors.Internal(err)
		}

		ss := &domain.Session{
			ID:       id,
			GameID:   gameID,
			Position: domain.PositionNotStarted,
			Players:  make(map[string]*domain.Player),
		}
		snap.Sessions[id] = ss
		created = ss.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventSessionStarted{
		SessionID: created.ID,
		GameID:    created.GameID,
	})

	return created, nil
}

// Join adds a participant to the session and returns the generated player id.
// Joining is permitted in any session state.
func (s *Service) Join(ctx context.Context, sessionID, name string) (string, error) {
	var playerID string
	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			return errNoSession(sessionID)
		}

		id := uuid.NewString()
		for _, taken := ss.Players[id]; taken; _, taken = ss.Players[id] {
			id = uuid.NewString()
		}

		ss.Players[id] = &domain.Player{
			Name:    name,
			Answers: make(map[int][]int),
			Score:   decimal.Zero,
		}
		playerID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, domain.EventPlayerJoined{
		SessionID:  sessionID,
		PlayerID:   playerID,
		PlayerName: name,
	})

	return playerID, nil
}

// QuestionView is the player-facing shape of a question: option texts only,
// no correctness flags.
type QuestionView struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Duration int      `json:"duration"`
	Options  []string `json:"options"`
	Position int      `json:"position"`
}

// CurrentQuestion returns the live question, or nil when the session has not
// started or has already ended.
func (s *Service) CurrentQuestion(_ context.Context, sessionID, playerID string) (*QuestionView, error) {
	var (
		view    *QuestionView
		viewErr error
	)
	s.state.View(func(snap *domain.Snapshot) {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			viewErr = errNoSession(sessionID)
			return
		}

		g, ok := snap.Games[ss.GameID]
		if !ok {
			viewErr = errNoGame(ss.GameID)
			return
		}

		if ss.Position < 0 || ss.Position >= len(g.Questions) {
			return // no live question
		}

		q := g.Questions[ss.Position]
		opts := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, o.Text)
		}

		view = &QuestionView{
			ID:       q.ID,
			Text:     q.Text,
			Duration: q.Duration,
			Options:  opts,
			Position: ss.Position,
		}
	})

	return view, viewErr
}

// Advance moves the session to its next question and stamps the presentation
// time. Position never moves backwards; advancing past the last question ends
// the session, after which Advance fails.
func (s *Service) Advance(ctx context.Context, sessionID string) (int, error) {
	var position int
	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			return errNoSession(sessionID)
		}

		g, ok := snap.Games[ss.GameID]
		if !ok {
			return errNoGame(ss.GameID)
		}

		if ss.Ended(len(g.Questions)) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session already ended: %s", sessionID))
		}

		ss.Position++
		ss.PresentedAt = time.Now()
		position = ss.Position
		return nil
	})

	return position, err
}

// SubmitAnswers records the player's picks for the current question,
// replacing any previous submission for the same position. It fails unless a
// question is live and the player has joined.
func (s *Service) SubmitAnswers(ctx context.Context, sessionID, playerID string, answers []int) error {
	var position int
	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			return errNoSession(sessionID)
		}

		g, ok := snap.Games[ss.GameID]
		if !ok {
			return errNoGame(ss.GameID)
		}

		if ss.Position < 0 || ss.Position >= len(g.Questions) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session not active: %s", sessionID))
		}

		p, ok := ss.Players[playerID]
		if !ok {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("player not found: %s", playerID))
		}

		p.Answers[ss.Position] = append([]int(nil), answers...)
		position = ss.Position
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.EventAnswersSubmitted{
		SessionID: sessionID,
		PlayerID:  playerID,
		Position:  position,
	})

	return nil
}

type Status struct {
	Started bool `json:"started"`
	Ended   bool `json:"ended"`
}

// SessionStatus reports whether the session has started and whether it has
// ended.
func (s *Service) SessionStatus(_ context.Context, sessionID, playerID string) (Status, error) {
	var (
		status  Status
		viewErr error
	)
	s.state.View(func(snap *domain.Snapshot) {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			viewErr = errNoSession(sessionID)
			return
		}

		g, ok := snap.Games[ss.GameID]
		if !ok {
			viewErr = errNoGame(ss.GameID)
			return
		}

		status = Status{
			Started: ss.Started(),
			Ended:   ss.Ended(len(g.Questions)),
		}
	})

	return status, viewErr
}

// Results returns the full player mapping, names, per-question answers and
// scores, with no aggregation.
func (s *Service) Results(_ context.Context, sessionID string) (map[string]*domain.Player, error) {
	var (
		players map[string]*domain.Player
		viewErr error
	)
	s.state.View(func(snap *domain.Snapshot) {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			viewErr = errNoSession(sessionID)
			return
		}

		players = make(map[string]*domain.Player, len(ss.Players))
		for id, p := range ss.Players {
			players[id] = p.Clone()
		}
	})

	return players, viewErr
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}

// newSessionID draws a random six-digit id and retries on collision with the
// active session set.
func newSessionID(snap *domain.Snapshot) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(idSpace))
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}

		id := strconv.FormatInt(n.Int64()+idBase, 10)
		if _, taken := snap.Sessions[id]; !taken {
			return id, nil
		}
	}

	return "", fmt.Errorf("session id space exhausted after %d attempts", maxIDAttempts)
}

func errNoSession(sessionID string) error {
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("session not found: %s", sessionID))
}

func errNoGame(gameID string) error {
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("game not found: %s", gameID))
}
