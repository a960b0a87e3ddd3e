package session

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/amberparty/roomsync/internal/prompt"
	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/store"
)

func testCatalog() *prompt.Catalog {
	return &prompt.Catalog{
		Version:   "1",
		Modifier:  []prompt.Card{{ID: "m1", Text: "very "}},
		Situation: []prompt.Card{{ID: "s1", Text: "awkward "}},
		Content:   []prompt.Card{{ID: "c1", Text: "silence"}},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newController(s *store.Store, userID, name string) *Controller {
	return NewController(s, testCatalog(), userID, name,
		clockwork.NewFakeClock(), rand.New(rand.NewPCG(1, 2)))
}

func TestJoinCreatesRoomWithJoinerAsHost(t *testing.T) {
	s := newTestStore(t)
	c := newController(s, "u1", "A")

	snap, err := c.Join("r1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if snap.HostID != "u1" {
		t.Errorf("host = %q, want u1", snap.HostID)
	}
	if snap.Phase != room.PhaseAnswer || snap.Round != 1 {
		t.Errorf("phase/round = %v/%d, want ANSWER/1", snap.Phase, snap.Round)
	}
	if snap.Prompt.Text != "very awkward silence" {
		t.Errorf("prompt = %q", snap.Prompt.Text)
	}
	if len(snap.ActiveMemberIDs) != 1 || snap.ActiveMemberIDs[0] != "u1" {
		t.Errorf("active members = %v", snap.ActiveMemberIDs)
	}
}

func TestJoinExistingRoomAndIdempotentRejoin(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	b := newController(s, "u2", "B")

	if _, err := a.Join("r1"); err != nil {
		t.Fatal(err)
	}
	snap, err := b.Join("r1")
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if len(snap.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(snap.Members))
	}
	joinedAt := snap.Members["u2"].JoinedAt

	again, err := b.Join("r1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(again.Members) != 2 {
		t.Errorf("rejoin duplicated member: %v", again.Members)
	}
	if !again.Members["u2"].JoinedAt.Equal(joinedAt) {
		t.Error("rejoin changed original join time")
	}
}

func TestJoinFullRoom(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < room.MaxMembers; i++ {
		c := newController(s, string(rune('a'+i)), "P")
		if _, err := c.Join("r1"); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	late := newController(s, "z-late", "Late")
	snap, err := late.Join("r1")
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
	if snap.HasMember("z-late") {
		t.Error("rejected joiner ended up on the roster")
	}
}

func TestMidRoundJoinerSpectates(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	a.Join("r1")
	a.SubmitAnswer("r1", "ok")
	if _, err := a.StartVote("r1"); err != nil {
		t.Fatal(err)
	}

	b := newController(s, "u2", "B")
	snap, err := b.Join("r1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.HasMember("u2") {
		t.Fatal("mid-round joiner not on roster")
	}
	for _, id := range snap.ActiveMemberIDs {
		if id == "u2" {
			t.Error("mid-round joiner became active in the running round")
		}
	}
}

func TestLeaveReelectsHostAndLastLeaveDeletes(t *testing.T) {
	s := newTestStore(t)
	b := newController(s, "u2", "B")
	a := newController(s, "u1", "A")

	b.Join("r1") // u2 creates and hosts
	a.Join("r1")

	snap := b.Leave("r1")
	if snap == nil {
		t.Fatal("room deleted though a member remains")
	}
	if snap.HostID != "u1" {
		t.Errorf("host after leave = %q, want u1 (lowest remaining id)", snap.HostID)
	}
	if snap.HasMember("u2") {
		t.Error("departed member still on roster")
	}

	if got := a.Leave("r1"); got != nil {
		t.Errorf("last leave returned %+v, want nil", got)
	}
	if got := s.Load("r1"); got != nil {
		t.Errorf("room still exists after last member left: %+v", got)
	}
}

func TestKick(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	b := newController(s, "u2", "B")
	a.Join("r1")
	b.Join("r1")

	if _, err := b.Kick("r1", "u1"); !errors.Is(err, ErrNotHost) {
		t.Errorf("non-host kick err = %v, want ErrNotHost", err)
	}
	if _, err := a.Kick("r1", "ghost"); !errors.Is(err, ErrNotMember) {
		t.Errorf("kick of unknown member err = %v, want ErrNotMember", err)
	}

	snap, err := a.Kick("r1", "u2")
	if err != nil {
		t.Fatalf("Kick: %v", err)
	}
	if snap.HasMember("u2") {
		t.Error("kicked member still on roster")
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	a.Join("r1")

	if _, err := a.SubmitAnswer("r1", "   "); !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("blank answer err = %v, want ErrEmptyAnswer", err)
	}
	if _, err := a.SubmitAnswer("nope", "x"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room err = %v, want ErrRoomNotFound", err)
	}

	snap, err := a.SubmitAnswer("r1", "  first  ")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if snap.Submissions["u1"].Text != "first" {
		t.Errorf("submission = %+v, want trimmed text", snap.Submissions["u1"])
	}

	// First submission wins.
	snap, err = a.SubmitAnswer("r1", "second")
	if err != nil {
		t.Fatalf("re-submit: %v", err)
	}
	if snap.Submissions["u1"].Text != "first" {
		t.Errorf("re-submit overwrote answer: %+v", snap.Submissions["u1"])
	}
}

func TestFullRoundFlow(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	b := newController(s, "u2", "B")
	a.Join("r1")
	b.Join("r1")

	if _, err := a.StartVote("r1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("StartVote before submissions err = %v, want ErrNotReady", err)
	}

	a.SubmitAnswer("r1", "answer a")
	if _, err := b.StartVote("r1"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host StartVote err = %v, want ErrNotHost", err)
	}
	b.SubmitAnswer("r1", "answer b")

	snap, err := a.StartVote("r1")
	if err != nil {
		t.Fatalf("StartVote: %v", err)
	}
	if snap.Phase != room.PhaseVote {
		t.Fatalf("phase = %v, want VOTE", snap.Phase)
	}

	if _, err := a.SubmitAnswer("r1", "late"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("submit during VOTE err = %v, want ErrWrongPhase", err)
	}
	if _, err := a.CastVote("r1", "ghost"); !errors.Is(err, ErrInvalidVoteTarget) {
		t.Errorf("vote for non-submitter err = %v, want ErrInvalidVoteTarget", err)
	}

	a.CastVote("r1", "u2")
	if _, err := a.ShowResult("r1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ShowResult before all voted err = %v, want ErrNotReady", err)
	}
	b.CastVote("r1", "u2") // self-votes are allowed by the model

	snap, err = a.ShowResult("r1")
	if err != nil {
		t.Fatalf("ShowResult: %v", err)
	}
	if snap.Phase != room.PhaseResult {
		t.Fatalf("phase = %v, want RESULT", snap.Phase)
	}
	if snap.Scores["u2"] != -1 {
		t.Errorf("scores = %v, want u2 at -1", snap.Scores)
	}
	if _, ok := snap.Scores["u1"]; ok {
		t.Errorf("u1 lost a point without the worst answer: %v", snap.Scores)
	}

	snap, err = a.NextRound("r1")
	if err != nil {
		t.Fatalf("NextRound: %v", err)
	}
	if snap.Round != 2 || snap.Phase != room.PhaseAnswer {
		t.Errorf("round/phase = %d/%v, want 2/ANSWER", snap.Round, snap.Phase)
	}
	if len(snap.Submissions) != 0 || len(snap.Votes) != 0 {
		t.Error("submissions/votes not cleared for the new round")
	}
	if snap.Scores["u2"] != -1 {
		t.Error("scores did not survive the round advance")
	}
}

func TestRoundLimitBoundaryAndRestart(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	a.Join("r1")

	if _, err := a.SetRoundLimit("r1", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Load("r1").RoundLimit; got != 1 {
		t.Fatalf("clamped round limit = %d, want 1", got)
	}

	a.SubmitAnswer("r1", "only answer")
	a.StartVote("r1")
	a.CastVote("r1", "u1")
	a.ShowResult("r1")

	snap, err := a.NextRound("r1")
	if err != nil {
		t.Fatalf("NextRound at limit: %v", err)
	}
	if snap.Phase != room.PhaseFinalResult {
		t.Fatalf("phase = %v, want FINAL_RESULT at round limit", snap.Phase)
	}
	if snap.Round != 1 {
		t.Errorf("round advanced past the limit: %d", snap.Round)
	}

	snap, err = a.Restart("r1")
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if snap.Round != 1 || snap.Phase != room.PhaseAnswer {
		t.Errorf("round/phase after restart = %d/%v", snap.Round, snap.Phase)
	}
	if len(snap.Scores) != 0 {
		t.Errorf("scores survived restart: %v", snap.Scores)
	}
}

func TestSetRoundLimitHostOnly(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	b := newController(s, "u2", "B")
	a.Join("r1")
	b.Join("r1")

	if _, err := b.SetRoundLimit("r1", 10); !errors.Is(err, ErrNotHost) {
		t.Errorf("non-host SetRoundLimit err = %v, want ErrNotHost", err)
	}
	if _, err := a.SetRoundLimit("r1", 10); err != nil {
		t.Errorf("host SetRoundLimit err = %v", err)
	}
	if got := s.Load("r1").RoundLimit; got != 10 {
		t.Errorf("round limit = %d, want 10", got)
	}
}

func TestFillDebugMembers(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	a.Join("r1")

	snap, err := a.FillDebugMembers("r1")
	if err != nil {
		t.Fatalf("FillDebugMembers: %v", err)
	}
	if len(snap.ActiveMemberIDs) != room.MaxMembers {
		t.Fatalf("active = %d, want %d", len(snap.ActiveMemberIDs), room.MaxMembers)
	}

	synthetic := 0
	for _, id := range snap.ActiveMemberIDs {
		if room.IsDebugMemberID(id) {
			synthetic++
			if _, ok := snap.Submissions[id]; !ok {
				t.Errorf("debug member %s has no canned submission", id)
			}
		}
	}
	if synthetic != room.MaxMembers-1 {
		t.Errorf("synthetic members = %d, want %d", synthetic, room.MaxMembers-1)
	}

	// The real member still has to answer before voting can start.
	if _, err := a.StartVote("r1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("StartVote err = %v, want ErrNotReady", err)
	}
	a.SubmitAnswer("r1", "real answer")
	if snap, err = a.StartVote("r1"); err != nil {
		t.Fatalf("StartVote after fill: %v", err)
	}
	if snap.Phase != room.PhaseVote {
		t.Errorf("phase = %v, want VOTE", snap.Phase)
	}
}

func TestWatchSeesOwnUpdates(t *testing.T) {
	s := newTestStore(t)
	a := newController(s, "u1", "A")
	a.Join("r1")

	var phases []room.Phase
	cancel := a.Watch("r1", func(snap *room.Snapshot) {
		if snap != nil {
			phases = append(phases, snap.Phase)
		}
	})
	defer cancel()

	a.SubmitAnswer("r1", "x")
	a.StartVote("r1")

	if len(phases) < 3 || phases[len(phases)-1] != room.PhaseVote {
		t.Errorf("observed phases = %v, want trailing VOTE", phases)
	}
}
