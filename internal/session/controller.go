// Package session drives the round state machine on behalf of one client:
// it turns user actions into adapter transforms and owns the policies the
// adapter deliberately does not enforce (roster caps, host-only gating,
// debug fills).
//
// Policy guards are evaluated against the client's currently observed
// snapshot; the transforms themselves re-check their preconditions silently
// so that re-applying them against a different remote base during
// reconciliation stays safe.
package session

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/amberparty/roomsync/internal/adapter"
	"github.com/amberparty/roomsync/internal/prompt"
	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/round"
)

// Controller is one client's handle on the game. userID and name come from
// the identity collaborator and are treated as opaque.
type Controller struct {
	adapter adapter.RoomStateAdapter
	catalog *prompt.Catalog
	clock   clockwork.Clock
	rng     *rand.Rand
	userID  string
	name    string
}

// NewController creates a session controller for one client identity.
func NewController(a adapter.RoomStateAdapter, catalog *prompt.Catalog, userID, name string, clock clockwork.Clock, rng *rand.Rand) *Controller {
	return &Controller{
		adapter: a,
		catalog: catalog,
		clock:   clock,
		rng:     rng,
		userID:  userID,
		name:    name,
	}
}

// UserID returns the client's member id.
func (c *Controller) UserID() string {
	return c.userID
}

// Load returns the current snapshot for the room.
func (c *Controller) Load(roomID string) *room.Snapshot {
	return c.adapter.Load(roomID)
}

// Watch subscribes to room snapshot changes.
func (c *Controller) Watch(roomID string, fn adapter.Listener) func() {
	return c.adapter.Subscribe(roomID, fn)
}

// Join enters the room, creating it when absent: the first joiner becomes
// host with a freshly drawn prompt. Rejoining is idempotent and keeps the
// original join time. A full roster rejects the join.
func (c *Controller) Join(roomID string) (*room.Snapshot, error) {
	initialPrompt, err := prompt.Build(c.catalog, c.rng)
	if err != nil {
		return nil, fmt.Errorf("draw prompt: %w", err)
	}
	now := c.clock.Now().UTC()

	cur := c.adapter.Load(roomID)
	if cur != nil && !cur.HasMember(c.userID) && len(cur.Members) >= room.MaxMembers {
		return cur, ErrRoomFull
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil {
			return room.New(initialPrompt, c.userID, c.name, now)
		}
		if prev.HasMember(c.userID) || len(prev.Members) >= room.MaxMembers {
			return prev
		}
		out := prev.Clone()
		out.Members[c.userID] = room.Member{Name: c.name, JoinedAt: now}
		if out.Phase == room.PhaseAnswer && !slices.Contains(out.ActiveMemberIDs, c.userID) {
			// Mid-round joiners spectate until the next round starts.
			out.ActiveMemberIDs = append(out.ActiveMemberIDs, c.userID)
		}
		return out
	})
	return next, nil
}

// Leave removes the client from the roster. The last member leaving deletes
// the room; a departing host hands off to the lowest remaining member id.
func (c *Controller) Leave(roomID string) *room.Snapshot {
	return c.adapter.Update(roomID, removeMember(c.userID))
}

// Kick removes another member from the roster. Host only.
func (c *Controller) Kick(roomID, targetID string) (*room.Snapshot, error) {
	cur := c.adapter.Load(roomID)
	if cur == nil {
		return nil, ErrRoomNotFound
	}
	if !cur.IsHost(c.userID) {
		return cur, ErrNotHost
	}
	if !cur.HasMember(targetID) {
		return cur, ErrNotMember
	}
	return c.adapter.Update(roomID, removeMember(targetID)), nil
}

func removeMember(targetID string) adapter.Updater {
	return func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || !prev.HasMember(targetID) {
			return prev
		}
		out := prev.Clone()
		delete(out.Members, targetID)
		if len(out.Members) == 0 {
			return nil
		}
		out.ActiveMemberIDs = slices.DeleteFunc(out.ActiveMemberIDs, func(id string) bool {
			return id == targetID
		})
		if out.HostID == targetID {
			out.HostID = out.MemberIDs()[0]
		}
		return out
	}
}

// SubmitAnswer records the client's answer for the current round. The first
// submission wins; re-submitting is a no-op.
func (c *Controller) SubmitAnswer(roomID, text string) (*room.Snapshot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	cur := c.adapter.Load(roomID)
	switch {
	case cur == nil:
		return nil, ErrRoomNotFound
	case !cur.HasMember(c.userID):
		return cur, ErrNotMember
	case cur.Phase != room.PhaseAnswer:
		return cur, ErrWrongPhase
	}

	now := c.clock.Now().UTC()
	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseAnswer {
			return prev
		}
		if _, ok := prev.Submissions[c.userID]; ok {
			return prev
		}
		out := prev.Clone()
		out.Submissions[c.userID] = room.Submission{Text: text, SubmittedAt: now}
		return out
	})
	return next, nil
}

// CastVote records the client's vote for the worst answer. One vote per
// round; the model does not forbid voting for yourself.
func (c *Controller) CastVote(roomID, targetID string) (*room.Snapshot, error) {
	cur := c.adapter.Load(roomID)
	switch {
	case cur == nil:
		return nil, ErrRoomNotFound
	case !cur.HasMember(c.userID):
		return cur, ErrNotMember
	case cur.Phase != room.PhaseVote:
		return cur, ErrWrongPhase
	}
	if _, ok := cur.Submissions[targetID]; !ok {
		return cur, ErrInvalidVoteTarget
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseVote {
			return prev
		}
		if _, ok := prev.Votes[c.userID]; ok {
			return prev
		}
		out := prev.Clone()
		out.Votes[c.userID] = room.Vote{TargetUserID: targetID}
		return out
	})
	return next, nil
}

// StartVote advances ANSWER -> VOTE once every active member has submitted.
// Host only.
func (c *Controller) StartVote(roomID string) (*room.Snapshot, error) {
	cur, err := c.hostGuard(roomID, room.PhaseAnswer)
	if err != nil {
		return cur, err
	}
	if !round.AllSubmitted(cur, cur.ActiveMemberIDs) {
		return cur, ErrNotReady
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseAnswer {
			return prev
		}
		return round.ToVote(prev)
	})
	return next, nil
}

// ShowResult advances VOTE -> RESULT, applying scoring, once every active
// member has voted. Host only.
func (c *Controller) ShowResult(roomID string) (*room.Snapshot, error) {
	cur, err := c.hostGuard(roomID, room.PhaseVote)
	if err != nil {
		return cur, err
	}
	if !round.AllVoted(cur, cur.ActiveMemberIDs) {
		return cur, ErrNotReady
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseVote {
			return prev
		}
		return round.ToResult(prev)
	})
	return next, nil
}

// NextRound starts the next round with a fresh prompt, or ends the game at
// the round limit. Host only.
func (c *Controller) NextRound(roomID string) (*room.Snapshot, error) {
	cur, err := c.hostGuard(roomID, room.PhaseResult)
	if err != nil {
		return cur, err
	}

	nextPrompt, err := prompt.Build(c.catalog, c.rng)
	if err != nil {
		return cur, fmt.Errorf("draw prompt: %w", err)
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseResult {
			return prev
		}
		return round.Advance(prev, nextPrompt)
	})
	return next, nil
}

// Restart begins a new game from FINAL_RESULT: round one, scores cleared,
// synthetic members dropped. Host only.
func (c *Controller) Restart(roomID string) (*room.Snapshot, error) {
	cur, err := c.hostGuard(roomID, room.PhaseFinalResult)
	if err != nil {
		return cur, err
	}

	nextPrompt, err := prompt.Build(c.catalog, c.rng)
	if err != nil {
		return cur, fmt.Errorf("draw prompt: %w", err)
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseFinalResult {
			return prev
		}
		return round.Restart(prev, nextPrompt)
	})
	return next, nil
}

// SetRoundLimit changes how many rounds the game runs, clamped to the legal
// range for the game's progress. Host only.
func (c *Controller) SetRoundLimit(roomID string, limit int) (*room.Snapshot, error) {
	cur := c.adapter.Load(roomID)
	if cur == nil {
		return nil, ErrRoomNotFound
	}
	if !cur.IsHost(c.userID) {
		return cur, ErrNotHost
	}

	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil {
			return prev
		}
		out := prev.Clone()
		out.RoundLimit = prev.ClampRoundLimit(limit)
		return out
	})
	return next, nil
}

// FillDebugMembers pads the active roster with synthetic debug members and
// canned submissions so a single developer can exercise full rounds. Host
// only, answer phase only.
func (c *Controller) FillDebugMembers(roomID string) (*room.Snapshot, error) {
	cur, err := c.hostGuard(roomID, room.PhaseAnswer)
	if err != nil {
		return cur, err
	}

	now := c.clock.Now().UTC()
	next := c.adapter.Update(roomID, func(prev *room.Snapshot) *room.Snapshot {
		if prev == nil || prev.Phase != room.PhaseAnswer {
			return prev
		}
		out := prev.Clone()
		out.ActiveMemberIDs = room.FillActiveMemberIDs(prev.MemberIDs(), room.MaxMembers)
		i := 0
		for _, id := range out.ActiveMemberIDs {
			if !room.IsDebugMemberID(id) {
				continue
			}
			if _, ok := out.Submissions[id]; !ok {
				out.Submissions[id] = room.Submission{Text: room.DebugSubmissionText(i), SubmittedAt: now}
			}
			i++
		}
		return out
	})
	return next, nil
}

func (c *Controller) hostGuard(roomID string, phase room.Phase) (*room.Snapshot, error) {
	cur := c.adapter.Load(roomID)
	switch {
	case cur == nil:
		return nil, ErrRoomNotFound
	case !cur.IsHost(c.userID):
		return cur, ErrNotHost
	case cur.Phase != phase:
		return cur, ErrWrongPhase
	}
	return cur, nil
}
