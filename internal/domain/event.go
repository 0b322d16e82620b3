package domain

const (
	EventNameSessionStarted   = "session.started"
	EventNamePlayerJoined     = "player.joined"
	EventNameAnswersSubmitted = "answers.submitted"
)

type EventSessionStarted struct {
	SessionID string
	GameID    string
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventPlayerJoined struct {
	SessionID  string
	PlayerID   string
	PlayerName string
}

func (EventPlayerJoined) Name() string { return EventNamePlayerJoined }

type EventAnswersSubmitted struct {
	SessionID string
	PlayerID  string
	Position  int
}

func (EventAnswersSubmitted) Name() string { return EventNameAnswersSubmitted }
