// Package model defines the command vocabulary and the projected state of
// the task log.
//
// The on-disk log is the only source of truth: State is never persisted, it
// is always the result of replaying an ordered sequence of Commands. Two
// properties make incremental replay safe:
//
//   - Determinism: applying the same per-writer command order always yields
//     the same State, so a reader that resumes from saved offsets reaches
//     the same State as one that replays from scratch.
//   - Per-item effects: every command touches exactly one item, so State
//     tolerates different interleavings across writers as long as each
//     writer's own order is preserved.
package model

// TagOrder is the fixed set of top-level categories, in display order.
// Scheduled items (tag "$YYYY-MM-DD") surface as "tickler" until their date
// passes, then as "inbox"; that resolution happens at render time.
var TagOrder = []string{"inbox", "todo", "ref", "someday", "tickler"}

// Item is one tracked task. Tag is "" for inbox, a literal category name,
// or a schedule marker of the form "$YYYY-MM-DD".
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tag   string `json:"tag"`
}

// State is the projected application state: an insertion-ordered mapping
// from item id to item. It is mutated only through Apply.
type State struct {
	order []string
	items map[string]*Item
}

// NewState returns an empty State.
func NewState() *State {
	return &State{items: make(map[string]*Item)}
}

// Get returns the item with the given id, or nil if absent.
func (s *State) Get(id string) *Item {
	return s.items[id]
}

// Items returns all items in insertion order.
func (s *State) Items() []*Item {
	out := make([]*Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Len returns the number of items.
func (s *State) Len() int { return len(s.order) }

// Clone returns a deep copy that preserves insertion order. Mutating the
// copy never affects the original.
func (s *State) Clone() *State {
	out := NewState()
	for _, id := range s.order {
		item := *s.items[id]
		out.insert(&item)
	}
	return out
}

func (s *State) insert(item *Item) {
	if existing, ok := s.items[item.ID]; ok {
		// Re-adding an existing id keeps its position.
		*existing = *item
		return
	}
	s.order = append(s.order, item.ID)
	s.items[item.ID] = item
}

func (s *State) remove(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
