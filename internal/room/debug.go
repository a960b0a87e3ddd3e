package room

import (
	"fmt"
	"strconv"
	"strings"
)

// Synthetic debug members live in a tagged id space so that code paths which
// filter real members from fillers can use a single predicate instead of
// string inspection at every call site.
const debugMemberPrefix = "__debug_member_"

// DebugMemberID returns the synthetic id for the i-th debug member.
func DebugMemberID(i int) string {
	return fmt.Sprintf("%s%d", debugMemberPrefix, i)
}

// IsDebugMemberID reports whether the id belongs to the synthetic debug space.
func IsDebugMemberID(userID string) bool {
	return strings.HasPrefix(userID, debugMemberPrefix)
}

// DebugMemberName derives a display name like "Debug-01" from a synthetic id.
func DebugMemberName(userID string) string {
	num, err := strconv.Atoi(strings.TrimPrefix(userID, debugMemberPrefix))
	if err != nil {
		num = -1
	}
	return fmt.Sprintf("Debug-%02d", num+1)
}

// FillActiveMemberIDs pads the given member ids with synthetic debug ids up
// to max, deduplicating and truncating the base list first.
func FillActiveMemberIDs(baseIDs []string, max int) []string {
	seen := make(map[string]bool, len(baseIDs))
	out := make([]string, 0, max)
	for _, id := range baseIDs {
		if seen[id] || len(out) >= max {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for i := 0; len(out) < max; i++ {
		out = append(out, DebugMemberID(i))
	}
	return out
}

// DebugSubmissionText returns a canned answer for the i-th filled submission.
func DebugSubmissionText(i int) string {
	return fmt.Sprintf("debug answer %d", i+1)
}
