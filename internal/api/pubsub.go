package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/livequiz/internal/domain"
)

const maxConcurrentPublishes = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionStarted struct {
		SessionID string `json:"session_id"`
		GameID    string `json:"game_id"`
	}

	PlayerJoined struct {
		SessionID  string `json:"session_id"`
		PlayerID   string `json:"player_id"`
		PlayerName string `json:"player_name"`
	}

	AnswersSubmitted struct {
		SessionID string `json:"session_id"`
		PlayerID  string `json:"player_id"`
		Position  int    `json:"position"`
	}
)

func (a *API) NotifySessionStarted(ctx context.Context, e domain.EventSessionStarted) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), SessionStarted{
		SessionID: e.SessionID,
		GameID:    e.GameID,
	})
}

func (a *API) NotifyPlayerJoined(ctx context.Context, e domain.EventPlayerJoined) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), PlayerJoined{
		SessionID:  e.SessionID,
		PlayerID:   e.PlayerID,
		PlayerName: e.PlayerName,
	})
}

func (a *API) NotifyAnswersSubmitted(ctx context.Context, e domain.EventAnswersSubmitted) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), AnswersSubmitted{
		SessionID: e.SessionID,
		PlayerID:  e.PlayerID,
		Position:  e.Position,
	})
}

// publishNotification fans the notification out to the session's own channel
// and the global firehose channel.
func (a *API) publishNotification(ctx context.Context, sessionID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	channels := []string{
		fmt.Sprintf("%s:session:%s", a.prefix, sessionID),
		fmt.Sprintf("%s:events", a.prefix),
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentPublishes)

	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			return a.redis.Publish(ctx, ch, b).Err()
		})
	}

	return eg.Wait()
}
