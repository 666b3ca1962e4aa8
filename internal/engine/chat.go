package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"dealroom/internal/rules"
	"dealroom/internal/state"
)

type chatPayload struct {
	state.ChatMessage
	RoomCode string `json:"roomCode"`
}

// Chat fans a contestant's message out to the whole room and records it in
// the bounded history. Spectators are silently refused.
func (e *Engine) Chat(r *state.Room, playerID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if runes := []rune(content); len(runes) > rules.MaxChatLen {
		content = string(runes[:rules.MaxChatLen])
	}

	r.Lock()
	var fx effects

	p := r.Players[playerID]
	if p == nil || p.Role != state.RoleContestant {
		r.Unlock()
		return
	}

	msg := state.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    p.ID,
		SenderName:  p.Name,
		Content:     content,
		TimestampMs: time.Now().UnixMilli(),
	}
	r.AppendChat(msg)

	payload := chatPayload{ChatMessage: msg, RoomCode: r.Code}
	for _, member := range r.PlayersInOrder() {
		if member.IsConnected {
			fx.pushTo(member.ConnectionID, "chat-message", payload)
		}
	}

	r.Unlock()
	e.apply(fx)
}
