package game

import (
	"context"

	"github.com/google/uuid"

	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/state"
)

type Config struct {
	State *state.Engine
}

type Service struct {
	state *state.Engine
}

func NewService(c Config) *Service {
	return &Service{
		state: c.State,
	}
}

type CreateRequest struct {
	Owner     string
	Name      string
	Questions []domain.Question
}

// Create inserts a new game owned by req.Owner under a generated id.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Game, error) {
	g := &domain.Game{
		ID:        uuid.NewString(),
		Owner:     req.Owner,
		Name:      req.Name,
		Questions: req.Questions,
	}

	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		if _, ok := snap.Accounts[req.Owner]; !ok {
			return errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("unknown owner: %s", req.Owner))
		}

		snap.Games[g.ID] = g.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return g, nil
}

// ListOwnedBy returns copies of all games owned by email, in no particular
// order.
func (s *Service) ListOwnedBy(_ context.Context, email string) []*domain.Game {
	var games []*domain.Game
	s.state.View(func(snap *domain.Snapshot) {
		for _, g := range snap.Games {
			if g.Owner == email {
				games = append(games, g.Clone())
			}
		}
	})

	return games
}

// Patch carries the fields Update merges into an existing game. Nil fields are
// left untouched.
type Patch struct {
	Name      *string
	Questions []domain.Question
}

// Update shallow-merges patch into the game. It fails with PermissionDenied
// when the game does not exist or email is not its owner, without revealing
// which.
func (s *Service) Update(ctx context.Context, email, gameID string, patch Patch) (*domain.Game, error) {
	var updated *domain.Game
	err := s.state.Update(ctx, func(snap *domain.Snapshot) error {
		g, ok := snap.Games[gameID]
		if !ok || g.Owner != email {
			return errDoesNotOwnGame(email, gameID)
		}

		if patch.Name != nil {
			g.Name = *patch.Name
		}
		if patch.Questions != nil {
			g.Questions = patch.Questions
		}

		updated = g.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// AssertOwnsGame fails with PermissionDenied unless the game exists and is
// owned by email.
func (s *Service) AssertOwnsGame(_ context.Context, email, gameID string) error {
	var owns bool
	s.state.View(func(snap *domain.Snapshot) {
		g, ok := snap.Games[gameID]
		owns = ok && g.Owner == email
	})

	if !owns {
		return errDoesNotOwnGame(email, gameID)
	}

	return nil
}

// AssertOwnsSession resolves ownership transitively through the session's
// game.
func (s *Service) AssertOwnsSession(_ context.Context, email, sessionID string) error {
	var owns bool
	s.state.View(func(snap *domain.Snapshot) {
		ss, ok := snap.Sessions[sessionID]
		if !ok {
			return
		}

		g, ok := snap.Games[ss.GameID]
		owns = ok && g.Owner == email
	})

	if !owns {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("%s does not own session %s", email, sessionID))
	}

	return nil
}

func errDoesNotOwnGame(email, gameID string) error {
	return errors.New(errors.CodePermissionDenied,
		errors.WithMessagef("%s does not own game %s", email, gameID))
}
