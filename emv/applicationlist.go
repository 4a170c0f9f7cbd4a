package emv

import (
	"bytes"
	"sort"
)

// ApplicationList is an ordered sequence of candidate Applications.
type ApplicationList struct {
	apps []*Application
}

// Len returns the number of applications.
func (l *ApplicationList) Len() int { return len(l.apps) }

// At returns the application at index i.
func (l *ApplicationList) At(i int) *Application { return l.apps[i] }

// All returns the backing slice (read-only use expected).
func (l *ApplicationList) All() []*Application { return l.apps }

// PushBack appends app to the end of the list.
func (l *ApplicationList) PushBack(app *Application) { l.apps = append(l.apps, app) }

// PopFront removes and returns the first application, or nil if empty.
func (l *ApplicationList) PopFront() *Application {
	if len(l.apps) == 0 {
		return nil
	}
	a := l.apps[0]
	l.apps = l.apps[1:]
	return a
}

// RemoveAt removes the application at index i.
func (l *ApplicationList) RemoveAt(i int) {
	l.apps = append(l.apps[:i], l.apps[i+1:]...)
}

// SortByPriority stably sorts ascending by Priority, treating 0 (unassigned)
// as the largest value — it sorts last (spec.md 3, 8).
func (l *ApplicationList) SortByPriority() {
	sort.SliceStable(l.apps, func(i, j int) bool {
		return rank(l.apps[i].Priority) < rank(l.apps[j].Priority)
	})
}

func rank(priority uint8) int {
	if priority == 0 {
		return 256
	}
	return int(priority)
}

// SupportedAID is one entry of the terminal's supported-AID configuration
// list (spec.md 6.4): an AID of 5..16 bytes with an exact/partial match
// flag.
type SupportedAID struct {
	AID          []byte
	PartialMatch bool
}

// Matches reports whether candidate matches this supported-AID entry under
// its exact/partial-match rule (spec.md 4.C).
func (s SupportedAID) Matches(candidate []byte) bool {
	if s.PartialMatch {
		return len(candidate) >= len(s.AID) && bytes.Equal(candidate[:len(s.AID)], s.AID)
	}
	return bytes.Equal(candidate, s.AID)
}

// FilterBySupportedAIDs removes every application whose AID matches no
// entry in supported, preserving order.
func (l *ApplicationList) FilterBySupportedAIDs(supported []SupportedAID) {
	kept := l.apps[:0]
	for _, app := range l.apps {
		if matchesAny(app.AID, supported) {
			kept = append(kept, app)
		}
	}
	l.apps = kept
}

func matchesAny(aid []byte, supported []SupportedAID) bool {
	for _, s := range supported {
		if s.Matches(aid) {
			return true
		}
	}
	return false
}
