package model

import (
	"testing"
	"time"
)

func TestMessageBefore(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := &Message{ID: "0190a", CreatedAt: t0}
	b := &Message{ID: "0190b", CreatedAt: t0}
	c := &Message{ID: "0100a", CreatedAt: t0.Add(time.Millisecond)}

	if !a.Before(b) || b.Before(a) {
		t.Error("equal timestamps must be ordered by id")
	}
	if !b.Before(c) || c.Before(b) {
		t.Error("earlier timestamp must sort first regardless of id")
	}
	if a.Before(a) {
		t.Error("a message must not sort before itself")
	}
}

func TestRoleValid(t *testing.T) {
	if !RolePatient.Valid() || !RoleMentor.Valid() {
		t.Error("patient and mentor must be valid roles")
	}
	if Role("admin").Valid() || Role("").Valid() {
		t.Error("unknown roles must be invalid")
	}
}
