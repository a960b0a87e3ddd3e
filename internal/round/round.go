// Package round holds the pure round state machine: completeness gates,
// phase transitions, vote tally and scoring. Functions never mutate their
// input and perform no I/O; host-only gating is the session layer's job.
package round

import "github.com/amberparty/roomsync/internal/room"

// AllSubmitted reports whether every participant has a submission.
// An empty participant list is never complete.
func AllSubmitted(s *room.Snapshot, participantIDs []string) bool {
	if s == nil || len(participantIDs) == 0 {
		return false
	}
	for _, id := range participantIDs {
		if _, ok := s.Submissions[id]; !ok {
			return false
		}
	}
	return true
}

// AllVoted reports whether every participant has cast a vote.
func AllVoted(s *room.Snapshot, participantIDs []string) bool {
	if s == nil || len(participantIDs) == 0 {
		return false
	}
	for _, id := range participantIDs {
		if _, ok := s.Votes[id]; !ok {
			return false
		}
	}
	return true
}

// Tally counts votes per submitter. Submitters that received no votes are
// present with a count of zero; votes targeting non-submitters are ignored.
func Tally(s *room.Snapshot) map[string]int {
	tally := make(map[string]int, len(s.Submissions))
	for submitterID := range s.Submissions {
		tally[submitterID] = 0
	}
	for _, v := range s.Votes {
		if _, ok := tally[v.TargetUserID]; !ok {
			continue
		}
		tally[v.TargetUserID]++
	}
	return tally
}

// ToVote transitions ANSWER -> VOTE. No other field changes.
func ToVote(s *room.Snapshot) *room.Snapshot {
	next := s.Clone()
	next.Phase = room.PhaseVote
	return next
}

// ToResult transitions VOTE -> RESULT and applies scoring: every submitter
// tied at the maximum vote count had the "worst" answer and loses one point.
// With zero submissions the phase changes and no score moves.
func ToResult(s *room.Snapshot) *room.Snapshot {
	next := s.Clone()
	next.Phase = room.PhaseResult
	if len(s.Submissions) == 0 {
		return next
	}

	tally := Tally(s)
	max := 0
	first := true
	for _, n := range tally {
		if first || n > max {
			max = n
			first = false
		}
	}
	for id, n := range tally {
		if n == max {
			next.Scores[id] = next.Scores[id] - 1
		}
	}
	return next
}

// Advance moves a finished round forward: below the round limit it starts the
// next round with a fresh prompt, full membership as active participants and
// cleared submissions and votes; at or above the limit it transitions to
// FINAL_RESULT instead.
func Advance(s *room.Snapshot, next room.Prompt) *room.Snapshot {
	out := s.Clone()
	if s.Round >= s.RoundLimit {
		out.Phase = room.PhaseFinalResult
		return out
	}
	out.Round = s.Round + 1
	out.Phase = room.PhaseAnswer
	out.Prompt = next
	out.ActiveMemberIDs = s.MemberIDs()
	out.Submissions = make(map[string]room.Submission)
	out.Votes = make(map[string]room.Vote)
	return out
}

// Restart resets a finished game back to round one: scores cleared, synthetic
// debug members dropped, fresh prompt, full membership active.
func Restart(s *room.Snapshot, next room.Prompt) *room.Snapshot {
	out := s.Clone()
	out.Round = 1
	out.Phase = room.PhaseAnswer
	out.Prompt = next
	out.ActiveMemberIDs = s.MemberIDs()
	out.Submissions = make(map[string]room.Submission)
	out.Votes = make(map[string]room.Vote)
	out.Scores = make(map[string]int)
	return out
}
