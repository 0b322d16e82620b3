package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered game owner, keyed by email.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Game is an owner-authored, ordered list of questions.
type Game struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

func (g *Game) Clone() *Game {
	c := *g
	c.Questions = make([]Question, len(g.Questions))
	for i, q := range g.Questions {
		c.Questions[i] = q
		c.Questions[i].Options = append([]AnswerOption(nil), q.Options...)
	}
	return &c
}

type Question struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Duration int            `json:"duration"` // seconds
	Options  []AnswerOption `json:"options"`
}

// AnswerOption is identified by its index within the question. Correct is
// only ever shown to the game owner, never to players.
type AnswerOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// PositionNotStarted is the position of a session before its first question.
const PositionNotStarted = -1

// Session is one live playthrough of a game. Position is -1 before the first
// question, 0..len(Questions)-1 while a question is live, and >= len(Questions)
// once the game has ended. Position never moves backwards.
type Session struct {
	ID          string             `json:"id"`
	GameID      string             `json:"game_id"`
	Position    int                `json:"position"`
	PresentedAt time.Time          `json:"presented_at"`
	Players     map[string]*Player `json:"players"`
}

func (s *Session) Started() bool { return s.Position != PositionNotStarted }

func (s *Session) Ended(questionCount int) bool { return s.Position >= questionCount }

func (s *Session) Clone() *Session {
	c := *s
	c.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		c.Players[id] = p.Clone()
	}
	return &c
}

// Player is a participant's state within one session. Answers maps a question
// position to the option indexes the player picked for it.
type Player struct {
	Name    string          `json:"name"`
	Answers map[int][]int   `json:"answers"`
	Score   decimal.Decimal `json:"score"`
}

func (p *Player) Clone() *Player {
	c := *p
	c.Answers = make(map[int][]int, len(p.Answers))
	for pos, picked := range p.Answers {
		c.Answers[pos] = append([]int(nil), picked...)
	}
	return &c
}

// Snapshot is the complete domain state, persisted wholesale on every flush.
type Snapshot struct {
	Accounts map[string]*Account `json:"accounts"`
	Games    map[string]*Game    `json:"games"`
	Sessions map[string]*Session `json:"sessions"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Accounts: make(map[string]*Account),
		Games:    make(map[string]*Game),
		Sessions: make(map[string]*Session),
	}
}
