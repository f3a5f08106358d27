package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/capitalize-ai/care-messaging/internal/model"
)

func TestOrderedPair(t *testing.T) {
	low, high := OrderedPair("u2", "u1")
	if low != "u1" || high != "u2" {
		t.Fatalf("OrderedPair(u2, u1) = (%q, %q), want (u1, u2)", low, high)
	}

	low2, high2 := OrderedPair("u1", "u2")
	if low != low2 || high != high2 {
		t.Fatal("OrderedPair must not depend on argument order")
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- conversations; with a semicolon in a comment
CREATE TABLE a (x TEXT DEFAULT 'a;b');
CREATE INDEX i ON a (x);

CREATE VIEW v AS SELECT 'it''s' AS y`

	got := SplitStatements(script)
	want := []string{
		"CREATE TABLE a (x TEXT DEFAULT 'a;b')",
		"CREATE INDEX i ON a (x)",
		"CREATE VIEW v AS SELECT 'it''s' AS y",
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitStatements() =\n%q\nwant\n%q", got, want)
	}
}

func TestSortSummaries(t *testing.T) {
	at := func(sec int) *time.Time {
		ts := time.Unix(int64(sec), 0).UTC()
		return &ts
	}
	summary := func(id, name string, unread bool, last *time.Time) model.ConversationSummary {
		return model.ConversationSummary{
			ConversationID:   id,
			HasUnread:        unread,
			LastMessageAt:    last,
			OtherParticipant: model.Profile{DisplayName: name},
		}
	}

	summaries := []model.ConversationSummary{
		summary("c-empty-b", "Bea", false, nil),
		summary("c-old", "Zed", false, at(100)),
		summary("c-empty-a", "Bea", false, nil),
		summary("c-unread-old", "Ann", true, at(50)),
		summary("c-new", "Yan", false, at(200)),
		summary("c-unread-new", "Ann", true, at(300)),
		summary("c-empty-name", "Abe", false, nil),
	}

	SortSummaries(summaries)

	var got []string
	for _, s := range summaries {
		got = append(got, s.ConversationID)
	}
	want := []string{
		"c-unread-new",
		"c-unread-old",
		"c-new",
		"c-old",
		"c-empty-name",
		"c-empty-a",
		"c-empty-b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortSummaries() order = %v, want %v", got, want)
	}
}
