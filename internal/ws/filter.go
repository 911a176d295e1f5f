// Package ws broadcasts edge events to websocket clients. Each client
// carries a sport/game filter adjusted by subscribe and unsubscribe
// messages; the hub fans every event out to the clients whose filter
// matches.
package ws

import "github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"

// Filter restricts which edge events a client receives. Empty sets accept
// everything; non-empty sets must all match.
type Filter struct {
	Sports map[string]bool
	Games  map[string]bool
}

// NewFilter builds a filter from sport and game lists
func NewFilter(sports, games []string) Filter {
	return Filter{
		Sports: toSet(sports),
		Games:  toSet(games),
	}
}

// Matches reports whether the event passes the filter
func (f Filter) Matches(event models.EdgeEvent) bool {
	if len(f.Sports) > 0 && !f.Sports[event.SportKey] {
		return false
	}
	if len(f.Games) > 0 && !f.Games[event.GameID] {
		return false
	}
	return true
}

// With returns a copy of the filter with the named sports and games added
func (f Filter) With(sports, games []string) Filter {
	next := Filter{
		Sports: copySet(f.Sports),
		Games:  copySet(f.Games),
	}
	for _, s := range sports {
		next.Sports[s] = true
	}
	for _, g := range games {
		next.Games[g] = true
	}
	return next
}

// Without returns a copy with the named sports and games removed. Calling
// it with no names clears the filter entirely.
func (f Filter) Without(sports, games []string) Filter {
	if len(sports) == 0 && len(games) == 0 {
		return NewFilter(nil, nil)
	}

	next := Filter{
		Sports: copySet(f.Sports),
		Games:  copySet(f.Games),
	}
	for _, s := range sports {
		delete(next.Sports, s)
	}
	for _, g := range games {
		delete(next.Games, g)
	}
	return next
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if item != "" {
			set[item] = true
		}
	}
	return set
}

func copySet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	return out
}
