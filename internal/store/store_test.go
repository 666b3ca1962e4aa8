package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"dealroom/internal/rules"
	"dealroom/internal/state"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	return New(rules.NewRNG(7), DefaultTTLs(), zap.NewNop())
}

func mustCreate(t *testing.T, s *Store, conn, name string) (*state.Room, *state.Player) {
	t.Helper()
	room, p, err := s.Create(conn, name, time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return room, p
}

func mustJoin(t *testing.T, s *Store, code, conn, name string) (*state.Room, *state.Player) {
	t.Helper()
	room, p, err := s.Join(code, conn, name, "", false)
	if err != nil {
		t.Fatalf("join %s: %v", code, err)
	}
	return room, p
}

func TestCreatePopulatesHostAndIndexes(t *testing.T) {
	s := newStoreForTest(t)
	room, host := mustCreate(t, s, "c1", "Alice")

	if len(room.Code) != rules.RoomCodeLen {
		t.Fatalf("bad room code %q", room.Code)
	}
	if !host.IsHost || host.Role != state.RoleContestant || !host.IsConnected {
		t.Fatalf("host not set up: %+v", host)
	}
	if room.HostID != host.ID {
		t.Fatalf("room host id mismatch")
	}
	got, playerID, ok := s.ResolveConn("c1")
	if !ok || got != room || playerID != host.ID {
		t.Fatalf("connection index broken")
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	s := newStoreForTest(t)
	if _, _, err := s.Create("c1", "   ", time.Now()); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("want ErrNameRequired, got %v", err)
	}
}

func TestJoinValidation(t *testing.T) {
	s := newStoreForTest(t)
	room, _ := mustCreate(t, s, "c1", "Alice")

	if _, _, err := s.Join("", "c2", "Bob", "", false); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("want ErrCodeRequired, got %v", err)
	}
	if _, _, err := s.Join(room.Code, "c2", "", "", false); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("want ErrNameRequired, got %v", err)
	}
	if _, _, err := s.Join("ZZZZZZ", "c2", "Bob", "", false); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
}

func TestJoinPassword(t *testing.T) {
	s := newStoreForTest(t)
	room, host := mustCreate(t, s, "c1", "Alice")
	if err := s.SetPassword(room.Code, host.ID, "sekret"); err != nil {
		t.Fatalf("set password: %v", err)
	}

	if _, _, err := s.Join(room.Code, "c2", "Bob", "wrong", false); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("want ErrBadPassword, got %v", err)
	}
	if _, _, err := s.Join(room.Code, "c2", "Bob", "sekret", false); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
}

func TestJoinContestantOnlyInLobby(t *testing.T) {
	s := newStoreForTest(t)
	room, _ := mustCreate(t, s, "c1", "Alice")
	room.Lock()
	room.Phase = state.PhasePlaying
	room.Unlock()

	if _, _, err := s.Join(room.Code, "c2", "Bob", "", false); !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("want ErrGameInProgress, got %v", err)
	}

	// Spectators are welcome in any phase and arrive inert.
	_, spec, err := s.Join(room.Code, "c2", "Bob", "", true)
	if err != nil {
		t.Fatalf("spectator join: %v", err)
	}
	if spec.Role != state.RoleSpectator || !spec.IsReady || !spec.HasDealt {
		t.Fatalf("spectator not inert: %+v", spec)
	}
}

func TestJoinContestantDuringSelection(t *testing.T) {
	s := newStoreForTest(t)
	room, _ := mustCreate(t, s, "c1", "Alice")
	room.Lock()
	room.Phase = state.PhaseSelection
	room.Unlock()

	// The lobby stays open for contestants until start-game, whichever
	// pre-game phase the room reports.
	if _, _, err := s.Join(room.Code, "c2", "Bob", "", false); err != nil {
		t.Fatalf("contestant join during selection: %v", err)
	}
}

func TestJoinRoomFull(t *testing.T) {
	s := newStoreForTest(t)
	room, _ := mustCreate(t, s, "c1", "P1")
	for i := 2; i <= rules.MaxContestants; i++ {
		mustJoin(t, s, room.Code, "c"+string(rune('0'+i)), "P")
	}
	if _, _, err := s.Join(room.Code, "cx", "Late", "", false); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("want ErrRoomFull, got %v", err)
	}
	// Spectator seats are unbounded.
	if _, _, err := s.Join(room.Code, "cy", "Watcher", "", true); err != nil {
		t.Fatalf("spectator blocked by full room: %v", err)
	}
}

func TestDisconnectKeepsPlayerResident(t *testing.T) {
	s := newStoreForTest(t)
	room, host := mustCreate(t, s, "c1", "Alice")

	got, p, ok := s.Disconnect("c1")
	if !ok || got != room || p.ID != host.ID {
		t.Fatalf("disconnect resolution failed")
	}
	if p.IsConnected || p.ConnectionID != "" {
		t.Fatalf("player still bound after disconnect: %+v", p)
	}
	if _, _, ok := s.ResolveConn("c1"); ok {
		t.Fatalf("connection index not dropped")
	}
	if room.Players[host.ID] == nil {
		t.Fatalf("player deleted on disconnect")
	}
}

func TestReconnectRebindsIdentity(t *testing.T) {
	s := newStoreForTest(t)
	room, host := mustCreate(t, s, "c1", "Alice")
	s.Disconnect("c1")

	got, p, err := s.Reconnect(host.ID, "c9")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if got != room || p.ID != host.ID || !p.IsConnected || p.ConnectionID != "c9" {
		t.Fatalf("reconnect did not rebind: %+v", p)
	}
	if _, playerID, ok := s.ResolveConn("c9"); !ok || playerID != host.ID {
		t.Fatalf("new connection not indexed")
	}

	if _, _, err := s.Reconnect("nobody", "c10"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
}

func TestSetPasswordGuards(t *testing.T) {
	s := newStoreForTest(t)
	room, host := mustCreate(t, s, "c1", "Alice")
	_, bob := mustJoin(t, s, room.Code, "c2", "Bob")

	if err := s.SetPassword(room.Code, bob.ID, "x"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("want ErrNotHost, got %v", err)
	}

	atLimit := strings.Repeat("p", rules.MaxPasswordLen)
	if err := s.SetPassword(room.Code, host.ID, atLimit); err != nil {
		t.Fatalf("max-length password rejected: %v", err)
	}
	if err := s.SetPassword(room.Code, host.ID, atLimit+"p"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("want ErrPasswordTooLong, got %v", err)
	}
	room.Lock()
	if room.Password != atLimit {
		t.Fatalf("rejected password overwrote the stored one")
	}
	room.Unlock()

	room.Lock()
	room.Phase = state.PhasePlaying
	room.Unlock()
	if err := s.SetPassword(room.Code, host.ID, "x"); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("want ErrNotWaiting, got %v", err)
	}
}

func TestGlobalLeaderboardAccumulatesAndRanks(t *testing.T) {
	s := newStoreForTest(t)
	s.UpdateGlobal("player-aaaa", "Alice", 100)
	s.UpdateGlobal("player-bbbb", "Bob", 300)
	s.UpdateGlobal("player-aaaa", "Alice", 250)
	s.UpdateGlobal("player-cccc", "Cleo", 350)

	top := s.TopGlobal()
	if len(top) != 3 {
		t.Fatalf("want 3 entries, got %d", len(top))
	}
	if top[0].PlayerName != "Alice" || top[0].TotalPoints != 350 || top[0].GamesPlayed != 2 {
		t.Fatalf("accumulation broken: %+v", top[0])
	}
	// Alice (seq 0) outranks Cleo on the 350 tie.
	if top[1].PlayerName != "Cleo" || top[2].PlayerName != "Bob" {
		t.Fatalf("tie order broken: %+v", top)
	}
	for i, e := range top {
		if e.Rank != i+1 {
			t.Fatalf("ranks not dense: %+v", top)
		}
	}
	if top[0].PublicID != "Alice#AAAA" {
		t.Fatalf("public id: %q", top[0].PublicID)
	}
}

func TestSweepHonoursTTLsAndSkipsLiveGames(t *testing.T) {
	s := newStoreForTest(t)
	now := time.Now()

	stale, staleHost := mustCreate(t, s, "c1", "Alice")
	stale.CreatedAt = now.Add(-13 * time.Hour)

	fresh, _ := mustCreate(t, s, "c2", "Bob")

	playing, _ := mustCreate(t, s, "c3", "Cleo")
	playing.CreatedAt = now.Add(-48 * time.Hour)
	playing.Phase = state.PhasePlaying

	done, _ := mustCreate(t, s, "c4", "Dana")
	done.Phase = state.PhaseFinished
	done.FinishedAt = now.Add(-3 * time.Hour)

	if got := s.Sweep(now); got != 2 {
		t.Fatalf("want 2 swept, got %d", got)
	}
	if _, ok := s.Room(stale.Code); ok {
		t.Fatalf("stale waiting room survived")
	}
	if _, ok := s.Room(done.Code); ok {
		t.Fatalf("expired finished room survived")
	}
	if _, ok := s.Room(fresh.Code); !ok {
		t.Fatalf("fresh room swept")
	}
	if _, ok := s.Room(playing.Code); !ok {
		t.Fatalf("playing room swept")
	}
	if _, _, ok := s.ResolveConn("c1"); ok {
		t.Fatalf("swept room's indexes survived")
	}
	if _, _, err := s.Reconnect(staleHost.ID, "cz"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("player index survived sweep: %v", err)
	}
}
