package feed

import (
	"cmp"
	"slices"
)

// Merge is the union of the server list and the local cache keyed by id. Server
// entries win on conflicts, including the read flag. Local entries with a
// synthesized id are dropped once the server reports the same event. The result
// is newest first and at most MaxItems long.
func Merge(server, local []Notification) []Notification {
	out := make([]Notification, 0, len(server)+len(local))
	ids := make(map[string]struct{}, len(server)+len(local))
	events := make(map[string]struct{}, len(server))

	for _, n := range server {
		if _, dup := ids[n.ID]; dup {
			continue
		}
		ids[n.ID] = struct{}{}
		events[n.contentKey()] = struct{}{}
		n.Local = false
		out = append(out, n)
	}
	for _, n := range local {
		if _, dup := ids[n.ID]; dup {
			continue
		}
		if _, known := events[n.contentKey()]; n.Local && known {
			continue
		}
		ids[n.ID] = struct{}{}
		out = append(out, n)
	}

	sortNewestFirst(out)
	if len(out) > MaxItems {
		out = out[:MaxItems]
	}
	return out
}

func sortNewestFirst(items []Notification) {
	slices.SortStableFunc(items, func(a, b Notification) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func countUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
