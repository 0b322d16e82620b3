package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/state"
)

const bearerPrefix = "Bearer "

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

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// Register creates a new account keyed by email. A second registration for the
// same email fails and leaves the first account untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if req.Email == "" || req.Password == "" {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("email and password are required"))
	}

	return s.state.Update(ctx, func(snap *domain.Snapshot) error {
		if _, ok := snap.Accounts[req.Email]; ok {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("account already exists: %s", req.Email))
		}

		snap.Accounts[req.Email] = &domain.Account{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
		}
		return nil
	})
}

// Login checks the credentials and returns a bearer token of the form
// <email>:<unixMillis>. The token is unsigned and carries no server-side
// state.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	var ok bool
	s.state.View(func(snap *domain.Snapshot) {
		a, found := snap.Accounts[email]
		ok = found && a.Password == password
	})

	if !ok {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid credentials"))
	}

	return fmt.Sprintf("%s:%d", email, time.Now().UnixMilli()), nil
}

// Logout is a no-op: tokens are stateless, there is nothing to invalidate.
func (*Service) Logout(_ context.Context, _ string) error {
	return nil
}

// ResolveIdentity extracts the account email from a bearer Authorization
// header and verifies the account exists.
func (s *Service) ResolveIdentity(_ context.Context, header string) (string, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("missing bearer token"))
	}

	email, _, ok := strings.Cut(token, ":")
	if !ok || email == "" {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("malformed token"))
	}

	var exists bool
	s.state.View(func(snap *domain.Snapshot) {
		_, exists = snap.Accounts[email]
	})

	if !exists {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("unknown account: %s", email))
	}

	return email, nil
}
