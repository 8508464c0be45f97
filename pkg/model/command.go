package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a command line that does not decode into any known
// variant. Callers must treat it as fatal for the replay pass: a line that
// decrypted cleanly but fails to parse indicates log corruption and must
// never be silently absorbed into State.
var ErrMalformed = errors.New("malformed command")

// Command is one decoded log operation. The variant set is closed; Apply
// dispatches over it exhaustively.
type Command interface {
	isCommand()
}

// AddItem creates an item at the end of the insertion order.
type AddItem struct {
	ID    string
	Title string
}

// SetTitle replaces an item's title in place.
type SetTitle struct {
	ID    string
	Title string
}

// SetTag assigns a tag or a schedule marker ("$YYYY-MM-DD") to an item.
type SetTag struct {
	ID  string
	Tag string
}

// ClearTag moves an item back to the inbox.
type ClearTag struct {
	ID string
}

// DeleteItem removes an item.
type DeleteItem struct {
	ID string
}

func (AddItem) isCommand()    {}
func (SetTitle) isCommand()   {}
func (SetTag) isCommand()     {}
func (ClearTag) isCommand()   {}
func (DeleteItem) isCommand() {}

// Parse decodes one plaintext command line. The wire format is a single
// newline-free UTF-8 line:
//
//	add <id> <title...>
//	title <id> <title...>
//	tag <id> <tag>
//	untag <id>
//	del <id>
func Parse(line string) (Command, error) {
	if strings.ContainsRune(line, '\n') {
		return nil, fmt.Errorf("%w: embedded newline", ErrMalformed)
	}
	op, rest, _ := strings.Cut(line, " ")
	switch op {
	case "add", "title":
		id, arg, ok := strings.Cut(rest, " ")
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: %q needs id and title", ErrMalformed, op)
		}
		if op == "add" {
			return AddItem{ID: id, Title: arg}, nil
		}
		return SetTitle{ID: id, Title: arg}, nil
	case "tag":
		id, tag, ok := strings.Cut(rest, " ")
		if !ok || id == "" || tag == "" || strings.ContainsRune(tag, ' ') {
			return nil, fmt.Errorf("%w: tag needs id and a single tag", ErrMalformed)
		}
		return SetTag{ID: id, Tag: tag}, nil
	case "untag":
		if rest == "" || strings.ContainsRune(rest, ' ') {
			return nil, fmt.Errorf("%w: untag needs exactly an id", ErrMalformed)
		}
		return ClearTag{ID: rest}, nil
	case "del":
		if rest == "" || strings.ContainsRune(rest, ' ') {
			return nil, fmt.Errorf("%w: del needs exactly an id", ErrMalformed)
		}
		return DeleteItem{ID: rest}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrMalformed, op)
	}
}

// Apply folds one command into the state. Updates and deletes referencing
// an unknown id are no-ops: per-writer order is guaranteed but cross-writer
// interleaving is not, so a mutation may legitimately be observed before
// the add from another writer in a different replay pass.
func Apply(cmd Command, s *State) {
	switch c := cmd.(type) {
	case AddItem:
		s.insert(&Item{ID: c.ID, Title: c.Title})
	case SetTitle:
		if item := s.Get(c.ID); item != nil {
			item.Title = c.Title
		}
	case SetTag:
		if item := s.Get(c.ID); item != nil {
			item.Tag = c.Tag
		}
	case ClearTag:
		if item := s.Get(c.ID); item != nil {
			item.Tag = ""
		}
	case DeleteItem:
		s.remove(c.ID)
	}
}
