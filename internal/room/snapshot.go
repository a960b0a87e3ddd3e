package room

import (
	"slices"
	"time"
)

const (
	// MaxMembers is the roster cap for a single room.
	MaxMembers = 8

	// MaxRoundLimit bounds how many rounds a game can be configured to run.
	MaxRoundLimit = 30

	// DefaultRoundLimit is the round limit for newly created rooms.
	DefaultRoundLimit = 5
)

// Prompt is the displayed prompt for a round, plus the ids of its
// constituent catalog cards for re-display and debugging.
type Prompt struct {
	ModifierID  string `json:"modifier_id"`
	SituationID string `json:"situation_id"`
	ContentID   string `json:"content_id"`
	Text        string `json:"text"`
}

// Submission is one member's answer for the current round
type Submission struct {
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Vote is one member's anonymous vote for the worst answer
type Vote struct {
	TargetUserID string `json:"target_user_id"`
}

// Member is a durable roster entry
type Member struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Snapshot is the full serialized state of a room at a point in time.
// It is the only shared mutable resource; a nil *Snapshot means the room
// does not exist.
type Snapshot struct {
	Phase           Phase                 `json:"phase"`
	Round           int                   `json:"round"`
	RoundLimit      int                   `json:"round_limit"`
	Prompt          Prompt                `json:"prompt"`
	ActiveMemberIDs []string              `json:"active_member_ids"`
	Submissions     map[string]Submission `json:"submissions"`
	Votes           map[string]Vote       `json:"votes"`
	Scores          map[string]int        `json:"scores"`
	Members         map[string]Member     `json:"members"`
	HostID          string                `json:"host_id"`
}

// New creates the initial snapshot for a room. The first joiner becomes host
// and is the only active member.
func New(prompt Prompt, hostID, hostName string, now time.Time) *Snapshot {
	return &Snapshot{
		Phase:           PhaseAnswer,
		Round:           1,
		RoundLimit:      DefaultRoundLimit,
		Prompt:          prompt,
		ActiveMemberIDs: []string{hostID},
		Submissions:     make(map[string]Submission),
		Votes:           make(map[string]Vote),
		Scores:          make(map[string]int),
		Members: map[string]Member{
			hostID: {
				Name:     hostName,
				JoinedAt: now,
			},
		},
		HostID: hostID,
	}
}

// Clone returns a deep copy of the snapshot. Transforms operate on clones so
// that callers holding the previous value never observe partial mutation.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	next := *s
	next.ActiveMemberIDs = slices.Clone(s.ActiveMemberIDs)
	next.Submissions = make(map[string]Submission, len(s.Submissions))
	for id, sub := range s.Submissions {
		next.Submissions[id] = sub
	}
	next.Votes = make(map[string]Vote, len(s.Votes))
	for id, v := range s.Votes {
		next.Votes[id] = v
	}
	next.Scores = make(map[string]int, len(s.Scores))
	for id, n := range s.Scores {
		next.Scores[id] = n
	}
	next.Members = make(map[string]Member, len(s.Members))
	for id, m := range s.Members {
		next.Members[id] = m
	}
	return &next
}

// MemberIDs returns the full roster ids in ascending order. The lowest id is
// the host-election order.
func (s *Snapshot) MemberIDs() []string {
	ids := make([]string, 0, len(s.Members))
	for id := range s.Members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsHost reports whether the given member is the room host.
func (s *Snapshot) IsHost(userID string) bool {
	return s != nil && s.HostID == userID
}

// HasMember reports whether the given id is on the roster.
func (s *Snapshot) HasMember(userID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Members[userID]
	return ok
}

// Finished reports whether the game has reached its terminal phase.
func (s *Snapshot) Finished() bool {
	return s != nil && s.Phase == PhaseFinalResult
}

// ClampRoundLimit returns the limit clamped to the legal range for the
// snapshot's progress: [max(1, current round), MaxRoundLimit] while the game
// is in progress, [1, MaxRoundLimit] once finished.
func (s *Snapshot) ClampRoundLimit(limit int) int {
	low := 1
	if !s.Finished() && s.Round > low {
		low = s.Round
	}
	if limit < low {
		return low
	}
	if limit > MaxRoundLimit {
		return MaxRoundLimit
	}
	return limit
}
