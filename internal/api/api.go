package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/livequiz/internal/account"
	"github.com/victornm/livequiz/internal/domain"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/event"
	"github.com/victornm/livequiz/internal/game"
	"github.com/victornm/livequiz/internal/session"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Account      *account.Service
	Game         *game.Service
	Session      *session.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	account *account.Service
	game    *game.Service
	session *session.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		account: c.Account,
		game:    c.Game,
		session: c.Session,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	r := c.Router

	r.POST("/v1/accounts", a.register)
	r.POST("/v1/login", a.login)
	r.POST("/v1/logout", a.logout)

	// Player-facing endpoints are unauthenticated: players are identified by
	// their generated id, not by an account.
	r.POST("/v1/sessions/:id/players", a.joinSession)
	r.GET("/v1/sessions/:id/question", a.currentQuestion)
	r.POST("/v1/sessions/:id/answers", a.submitAnswers)
	r.GET("/v1/sessions/:id/status", a.sessionStatus)

	owner := r.Group("/", a.authenticate)
	owner.GET("/v1/games", a.listGames)
	owner.POST("/v1/games", a.createGame)
	owner.PATCH("/v1/games/:id", a.updateGame)
	owner.POST("/v1/games/:id/start", a.startGame)
	owner.POST("/v1/sessions/:id/advance", a.advanceSession)
	owner.GET("/v1/sessions/:id/results", a.sessionResults)

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameSessionStarted, func(ctx context.Context, e event.Event) error {
			return a.NotifySessionStarted(ctx, e.(domain.EventSessionStarted))
		})
		c.EventBus.Subscribe(domain.EventNamePlayerJoined, func(ctx context.Context, e event.Event) error {
			return a.NotifyPlayerJoined(ctx, e.(domain.EventPlayerJoined))
		})
		c.EventBus.Subscribe(domain.EventNameAnswersSubmitted, func(ctx context.Context, e event.Event) error {
			return a.NotifyAnswersSubmitted(ctx, e.(domain.EventAnswersSubmitted))
		})
	}

	return a
}

const identityKey = "livequiz.identity"

// authenticate resolves the bearer token to an account email before any
// owner-facing handler runs.
func (a *API) authenticate(c *gin.Context) {
	email, err := a.account.ResolveIdentity(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Set(identityKey, email)
	c.Next()
}

func identity(c *gin.Context) string {
	return c.GetString(identityKey)
}

func (a *API) register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	err := a.account.Register(c.Request.Context(), account.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func (a *API) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	token, err := a.account.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (a *API) logout(c *gin.Context) {
	if err := a.account.Logout(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listGames(c *gin.Context) {
	games := a.game.ListOwnedBy(c.Request.Context(), identity(c))

	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (a *API) createGame(c *gin.Context) {
	var req struct {
		Name      string            `json:"name"`
		Questions []domain.Question `json:"questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	g, err := a.game.Create(c.Request.Context(), game.CreateRequest{
		Owner:     identity(c),
		Name:      req.Name,
		Questions: req.Questions,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"game": g})
}

func (a *API) updateGame(c *gin.Context) {
	var req struct {
		Name      *string           `json:"name"`
		Questions []domain.Question `json:"questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	g, err := a.game.Update(c.Request.Context(), identity(c), c.Param("id"), game.Patch{
		Name:      req.Name,
		Questions: req.Questions,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": g})
}

func (a *API) startGame(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("id")

	if err := a.game.AssertOwnsGame(ctx, identity(c), gameID); err != nil {
		abortWithError(c, err)
		return
	}

	ss, err := a.session.Start(ctx, gameID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": ss.ID,
		"position":   ss.Position,
	})
}

func (a *API) advanceSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if err := a.game.AssertOwnsSession(ctx, identity(c), sessionID); err != nil {
		abortWithError(c, err)
		return
	}

	position, err := a.session.Advance(ctx, sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

func (a *API) sessionResults(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if err := a.game.AssertOwnsSession(ctx, identity(c), sessionID); err != nil {
		abortWithError(c, err)
		return
	}

	players, err := a.session.Results(ctx, sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (a *API) joinSession(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	playerID, err := a.session.Join(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"player_id": playerID})
}

func (a *API) currentQuestion(c *gin.Context) {
	q, err := a.session.CurrentQuestion(c.Request.Context(), c.Param("id"), c.Query("player"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": q})
}

func (a *API) submitAnswers(c *gin.Context) {
	var req struct {
		PlayerID string `json:"player_id"`
		Answers  []int  `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	err := a.session.SubmitAnswers(c.Request.Context(), c.Param("id"), req.PlayerID, req.Answers)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) sessionStatus(c *gin.Context) {
	status, err := a.session.SessionStatus(c.Request.Context(), c.Param("id"), c.Query("player"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code,
		"message": e.Message,
	})
}
