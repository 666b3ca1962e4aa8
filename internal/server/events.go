package server

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealroom/internal/state"
	"dealroom/internal/store"
)

// inbound is the client event envelope. RequestID, when set, asks for an
// ack frame carrying the same id.
type inbound struct {
	Event     string          `json:"event"`
	RequestID uint64          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type ackFrame struct {
	Event     string `json:"event"`
	RequestID uint64 `json:"requestId"`
	Data      any    `json:"data"`
}

type ackResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	RoomCode string `json:"roomCode,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// leaderboardAck always carries the array, even when empty.
type leaderboardAck struct {
	Success     bool                `json:"success"`
	Leaderboard []store.GlobalEntry `json:"leaderboard"`
}

func (s *Server) ack(c *client, requestID uint64, result any) {
	if requestID == 0 {
		return
	}
	raw, err := json.Marshal(ackFrame{Event: "ack", RequestID: requestID, Data: result})
	if err != nil {
		s.log.Error("ack marshal failed", zap.Error(err))
		return
	}
	c.enqueue(raw)
}

// dispatch routes one inbound frame. Ack-bearing events answer with a
// structured result; game-mutating events fail silently and rely on the
// next state broadcast as the correction.
func (s *Server) dispatch(c *client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Warn("bad frame", zap.String("conn", c.id), zap.Error(err))
		return
	}

	switch msg.Event {
	case "create-room":
		s.handleCreateRoom(c, msg)
	case "join-room":
		s.handleJoinRoom(c, msg)
	case "reconnect-player":
		s.handleReconnect(c, msg)
	case "set-room-password":
		s.handleSetPassword(c, msg)
	case "get-global-leaderboard":
		lb := s.store.TopGlobal()
		if lb == nil {
			lb = []store.GlobalEntry{}
		}
		s.ack(c, msg.RequestID, leaderboardAck{Success: true, Leaderboard: lb})
	case "select-box":
		var data struct {
			BoxNumber int `json:"boxNumber"`
		}
		if room, playerID, ok := s.resolve(c, msg.Data, &data); ok {
			s.engine.SelectBox(room, playerID, data.BoxNumber)
		}
	case "player-ready":
		if room, playerID, ok := s.resolve(c, nil, nil); ok {
			s.engine.ToggleReady(room, playerID)
		}
	case "start-game":
		if room, playerID, ok := s.resolve(c, nil, nil); ok {
			s.engine.StartGame(room, playerID)
		}
	case "open-box":
		var data struct {
			BoxNumber int `json:"boxNumber"`
		}
		if room, playerID, ok := s.resolve(c, msg.Data, &data); ok {
			s.engine.OpenBox(room, playerID, data.BoxNumber)
		}
	case "deal-response":
		var data struct {
			Accepted bool `json:"accepted"`
		}
		if room, playerID, ok := s.resolve(c, msg.Data, &data); ok {
			s.engine.DealResponse(room, playerID, data.Accepted)
		}
	case "chat-message":
		var data struct {
			Content string `json:"content"`
		}
		if room, playerID, ok := s.resolve(c, msg.Data, &data); ok {
			s.engine.Chat(room, playerID, data.Content)
		}
	default:
		s.log.Warn("unknown event", zap.String("conn", c.id), zap.String("event", msg.Event))
	}
}

// resolve maps the connection to its player and room and decodes the
// payload. Any failure drops the event.
func (s *Server) resolve(c *client, raw json.RawMessage, data any) (room *state.Room, playerID string, ok bool) {
	if data != nil {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, "", false
		}
	}
	r, playerID, found := s.store.ResolveConn(c.id)
	if !found {
		return nil, "", false
	}
	return r, playerID, true
}

func (s *Server) handleCreateRoom(c *client, msg inbound) {
	var data struct {
		PlayerName string `json:"playerName"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: store.ErrNameRequired.Error()})
		return
	}
	room, p, err := s.store.Create(c.id, data.PlayerName, time.Now())
	if err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: err.Error()})
		return
	}
	s.ack(c, msg.RequestID, ackResult{Success: true, RoomCode: room.Code, PlayerID: p.ID})
	s.engine.AfterJoin(room, p.ID)
}

func (s *Server) handleJoinRoom(c *client, msg inbound) {
	var data struct {
		RoomCode    string `json:"roomCode"`
		PlayerName  string `json:"playerName"`
		Password    string `json:"password"`
		AsSpectator bool   `json:"asSpectator"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: store.ErrCodeRequired.Error()})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(data.RoomCode))
	room, p, err := s.store.Join(code, c.id, data.PlayerName, data.Password, data.AsSpectator)
	if err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: err.Error()})
		return
	}
	s.ack(c, msg.RequestID, ackResult{Success: true, RoomCode: room.Code, PlayerID: p.ID})
	s.engine.AfterJoin(room, p.ID)
}

func (s *Server) handleReconnect(c *client, msg inbound) {
	var data struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.PlayerID == "" {
		s.ack(c, msg.RequestID, ackResult{Error: store.ErrPlayerNotFound.Error()})
		return
	}
	room, p, err := s.store.Reconnect(data.PlayerID, c.id)
	if err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: err.Error()})
		return
	}
	s.ack(c, msg.RequestID, ackResult{Success: true, RoomCode: room.Code})
	s.engine.AfterReconnect(room, p.ID)
}

func (s *Server) handleSetPassword(c *client, msg inbound) {
	var data struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: store.ErrRoomNotFound.Error()})
		return
	}
	room, playerID, found := s.store.ResolveConn(c.id)
	if !found {
		s.ack(c, msg.RequestID, ackResult{Error: store.ErrRoomNotFound.Error()})
		return
	}
	if err := s.store.SetPassword(room.Code, playerID, data.Password); err != nil {
		s.ack(c, msg.RequestID, ackResult{Error: err.Error()})
		return
	}
	s.ack(c, msg.RequestID, ackResult{Success: true})
}
