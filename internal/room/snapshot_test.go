package room

import (
	"testing"
	"time"
)

func TestClampRoundLimit(t *testing.T) {
	tests := []struct {
		name  string
		round int
		phase Phase
		limit int
		want  int
	}{
		{"below current round while in progress", 4, PhaseAnswer, 2, 4},
		{"at current round", 4, PhaseAnswer, 4, 4},
		{"above current round", 2, PhaseVote, 10, 10},
		{"above max", 1, PhaseAnswer, 99, MaxRoundLimit},
		{"below one", 1, PhaseAnswer, 0, 1},
		{"finished game allows below current round", 12, PhaseFinalResult, 3, 3},
		{"finished game still clamps to one", 12, PhaseFinalResult, -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Prompt{}, "u1", "A", time.Unix(0, 0))
			s.Round = tt.round
			s.Phase = tt.phase
			if got := s.ClampRoundLimit(tt.limit); got != tt.want {
				t.Errorf("ClampRoundLimit(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(Prompt{Text: "p"}, "u1", "A", time.Unix(0, 0))
	s.Submissions["u1"] = Submission{Text: "a"}
	s.Scores["u1"] = 2

	c := s.Clone()
	c.Submissions["u2"] = Submission{Text: "b"}
	c.Scores["u1"] = -1
	c.ActiveMemberIDs = append(c.ActiveMemberIDs, "u2")
	c.Members["u2"] = Member{Name: "B"}

	if len(s.Submissions) != 1 {
		t.Errorf("clone mutation leaked into original submissions: %v", s.Submissions)
	}
	if s.Scores["u1"] != 2 {
		t.Errorf("clone mutation leaked into original scores: %v", s.Scores)
	}
	if len(s.ActiveMemberIDs) != 1 || len(s.Members) != 1 {
		t.Errorf("clone mutation leaked into original roster")
	}
}

func TestCloneNil(t *testing.T) {
	var s *Snapshot
	if s.Clone() != nil {
		t.Error("Clone of nil snapshot should be nil")
	}
}

func TestMemberIDsSorted(t *testing.T) {
	s := New(Prompt{}, "c", "C", time.Unix(0, 0))
	s.Members["a"] = Member{Name: "A"}
	s.Members["b"] = Member{Name: "B"}

	ids := s.MemberIDs()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("MemberIDs() = %v, want %v", ids, want)
		}
	}
}

func TestDebugMemberIDs(t *testing.T) {
	id := DebugMemberID(0)
	if !IsDebugMemberID(id) {
		t.Errorf("IsDebugMemberID(%q) = false, want true", id)
	}
	if IsDebugMemberID("u1") {
		t.Error("IsDebugMemberID(u1) = true, want false")
	}
	if got := DebugMemberName(id); got != "Debug-01" {
		t.Errorf("DebugMemberName(%q) = %q, want Debug-01", id, got)
	}
}

func TestFillActiveMemberIDs(t *testing.T) {
	out := FillActiveMemberIDs([]string{"u1", "u1", "u2"}, 4)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[0] != "u1" || out[1] != "u2" {
		t.Errorf("real members not preserved: %v", out)
	}
	if !IsDebugMemberID(out[2]) || !IsDebugMemberID(out[3]) {
		t.Errorf("padding is not synthetic: %v", out)
	}
}
