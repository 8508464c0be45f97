package model

import (
	"errors"
	"testing"
)

// --- Parse tests ---

func TestParse_Add(t *testing.T) {
	cmd, err := Parse("add k3f9 buy milk and eggs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	add, ok := cmd.(AddItem)
	if !ok {
		t.Fatalf("got %T, want AddItem", cmd)
	}
	if add.ID != "k3f9" || add.Title != "buy milk and eggs" {
		t.Fatalf("got id=%q title=%q", add.ID, add.Title)
	}
}

func TestParse_Title(t *testing.T) {
	cmd, err := Parse("title k3f9 new title")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	st, ok := cmd.(SetTitle)
	if !ok {
		t.Fatalf("got %T, want SetTitle", cmd)
	}
	if st.ID != "k3f9" || st.Title != "new title" {
		t.Fatalf("got id=%q title=%q", st.ID, st.Title)
	}
}

func TestParse_Tag(t *testing.T) {
	cmd, err := Parse("tag k3f9 todo")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if st := cmd.(SetTag); st.Tag != "todo" {
		t.Fatalf("tag = %q, want todo", st.Tag)
	}
}

func TestParse_ScheduleTag(t *testing.T) {
	cmd, err := Parse("tag k3f9 $2026-09-01")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if st := cmd.(SetTag); st.Tag != "$2026-09-01" {
		t.Fatalf("tag = %q, want $2026-09-01", st.Tag)
	}
}

func TestParse_UntagAndDel(t *testing.T) {
	if _, err := Parse("untag k3f9"); err != nil {
		t.Fatalf("untag: %v", err)
	}
	if _, err := Parse("del k3f9"); err != nil {
		t.Fatalf("del: %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"frobnicate k3f9",
		"add",
		"add k3f9",
		"tag k3f9",
		"tag k3f9 two words",
		"untag k3f9 extra",
		"del",
		"add k3f9 title\nwith newline",
	} {
		_, err := Parse(line)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", line)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): error %v is not ErrMalformed", line, err)
		}
	}
}

// --- Apply tests ---

func TestApply_AddPreservesInsertionOrder(t *testing.T) {
	s := NewState()
	for _, line := range []string{"add c third?", "add a first", "add b second"} {
		cmd, err := Parse(line)
		if err != nil {
			t.Fatal(err)
		}
		Apply(cmd, s)
	}
	items := s.Items()
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].ID != "c" || items[1].ID != "a" || items[2].ID != "b" {
		t.Fatalf("order = %s %s %s, want c a b", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestApply_UpdateKeepsPosition(t *testing.T) {
	s := NewState()
	Apply(AddItem{ID: "a", Title: "one"}, s)
	Apply(AddItem{ID: "b", Title: "two"}, s)
	Apply(SetTitle{ID: "a", Title: "renamed"}, s)
	Apply(SetTag{ID: "a", Tag: "todo"}, s)

	items := s.Items()
	if items[0].ID != "a" {
		t.Fatal("update moved item a from its position")
	}
	if items[0].Title != "renamed" || items[0].Tag != "todo" {
		t.Fatalf("got title=%q tag=%q", items[0].Title, items[0].Tag)
	}
}

func TestApply_Delete(t *testing.T) {
	s := NewState()
	Apply(AddItem{ID: "a", Title: "one"}, s)
	Apply(AddItem{ID: "b", Title: "two"}, s)
	Apply(DeleteItem{ID: "a"}, s)

	if s.Len() != 1 {
		t.Fatalf("got %d items, want 1", s.Len())
	}
	if s.Get("a") != nil {
		t.Fatal("deleted item still present")
	}
}

func TestApply_MutationOnUnknownIDIsNoop(t *testing.T) {
	s := NewState()
	Apply(SetTitle{ID: "ghost", Title: "boo"}, s)
	Apply(SetTag{ID: "ghost", Tag: "todo"}, s)
	Apply(ClearTag{ID: "ghost"}, s)
	Apply(DeleteItem{ID: "ghost"}, s)
	if s.Len() != 0 {
		t.Fatalf("got %d items, want 0", s.Len())
	}
}

func TestApply_ClearTag(t *testing.T) {
	s := NewState()
	Apply(AddItem{ID: "a", Title: "one"}, s)
	Apply(SetTag{ID: "a", Tag: "someday"}, s)
	Apply(ClearTag{ID: "a"}, s)
	if got := s.Get("a").Tag; got != "" {
		t.Fatalf("tag = %q, want empty", got)
	}
}

// Replaying the same commands in one pass or split at any point must yield
// the same state.
func TestApply_BatchInvariance(t *testing.T) {
	lines := []string{
		"add a first",
		"add b second",
		"tag a todo",
		"title b renamed",
		"add c third",
		"tag c $2030-01-01",
		"del a",
		"untag c",
	}

	full := NewState()
	for _, line := range lines {
		cmd, err := Parse(line)
		if err != nil {
			t.Fatal(err)
		}
		Apply(cmd, full)
	}

	for split := 0; split <= len(lines); split++ {
		s := NewState()
		for _, line := range lines[:split] {
			cmd, _ := Parse(line)
			Apply(cmd, s)
		}
		for _, line := range lines[split:] {
			cmd, _ := Parse(line)
			Apply(cmd, s)
		}
		if !statesEqual(full, s) {
			t.Fatalf("split at %d diverged from single-pass replay", split)
		}
	}
}

func statesEqual(a, b *State) bool {
	ai, bi := a.Items(), b.Items()
	if len(ai) != len(bi) {
		return false
	}
	for i := range ai {
		if *ai[i] != *bi[i] {
			return false
		}
	}
	return true
}
