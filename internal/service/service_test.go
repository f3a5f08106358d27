package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/internal/store/sqlite"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

// countingStore counts calls that matter for the repair policy.
type countingStore struct {
	store.Store
	inserts atomic.Int32
	ensures atomic.Int32
}

func (c *countingStore) InsertMessage(ctx context.Context, msg *model.NewMessage) (*model.Message, error) {
	c.inserts.Add(1)
	return c.Store.InsertMessage(ctx, msg)
}

func (c *countingStore) EnsureSchema(ctx context.Context) error {
	c.ensures.Add(1)
	return c.Store.EnsureSchema(ctx)
}

// scriptedStore returns canned results for InsertMessage and EnsureSchema.
// Other methods are not expected to be called.
type scriptedStore struct {
	store.Store
	insertErrs []error
	ensureErr  error
	inserts    int
	ensures    int
}

func (f *scriptedStore) InsertMessage(_ context.Context, msg *model.NewMessage) (*model.Message, error) {
	f.inserts++
	if f.inserts <= len(f.insertErrs) && f.insertErrs[f.inserts-1] != nil {
		return nil, f.insertErrs[f.inserts-1]
	}
	return &model.Message{
		ID:             fmt.Sprintf("m%d", f.inserts),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (f *scriptedStore) EnsureSchema(context.Context) error {
	f.ensures++
	return f.ensureErr
}

type failingBroker struct {
	realtime.Broker
	publishes int
}

func (b *failingBroker) Publish(context.Context, *model.Message) error {
	b.publishes++
	return errors.New("transport down")
}

type fixture struct {
	svc   *MessagingService
	store *countingStore
	db    *sqlite.Store
	hub   *realtime.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	log := logger.NewNop()

	db, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "messaging.db")}, log)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	hub := realtime.NewHub(16, log)
	t.Cleanup(func() { hub.Close() })

	cs := &countingStore{Store: db}
	return &fixture{
		svc:   NewMessagingService(cs, hub, Config{}, log),
		store: cs,
		db:    db,
		hub:   hub,
	}
}

func summaryFor(t *testing.T, svc *MessagingService, userID, conversationID string) model.ConversationSummary {
	t.Helper()

	summaries, err := svc.GetUserConversations(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserConversations(%s) error = %v", userID, err)
	}
	for _, s := range summaries {
		if s.ConversationID == conversationID {
			return s
		}
	}
	t.Fatalf("conversation %s not in %s's inbox", conversationID, userID)
	return model.ConversationSummary{}
}

func send(t *testing.T, svc *MessagingService, conversationID, senderID, content string) *model.Message {
	t.Helper()

	msg, err := svc.SendMessage(context.Background(), conversationID, senderID, &model.SendMessageRequest{Content: content})
	if err != nil {
		t.Fatalf("SendMessage(%q) error = %v", content, err)
	}
	return msg
}

func TestGetOrCreateConversation_ConcurrentCallsAgree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				ids[i], errs[i] = f.svc.GetOrCreateConversation(ctx, "patient-1", "mentor-1", nil)
			} else {
				ids[i], errs[i] = f.svc.GetOrCreateConversation(ctx, "mentor-1", "patient-1", nil)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("call %d returned %s, want %s", i, ids[i], ids[0])
		}
	}

	summaries, err := f.svc.GetUserConversations(ctx, "patient-1")
	if err != nil {
		t.Fatalf("GetUserConversations() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("patient has %d conversations, want 1", len(summaries))
	}
}

func TestGetOrCreateConversation_OrderSymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ab, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation(a, b) error = %v", err)
	}
	ba, err := f.svc.GetOrCreateConversation(ctx, "b", "a", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation(b, a) error = %v", err)
	}
	if ab != ba {
		t.Fatalf("(a, b) = %s but (b, a) = %s", ab, ba)
	}

	other, err := f.svc.GetOrCreateConversation(ctx, "a", "c", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation(a, c) error = %v", err)
	}
	if other == ab {
		t.Fatal("different pairs share a conversation")
	}
}

func TestMessages_TotalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	var sent []*model.Message
	for i := 0; i < 5; i++ {
		sender := "a"
		if i%2 == 1 {
			sender = "b"
		}
		sent = append(sent, send(t, f.svc, conv, sender, fmt.Sprintf("message %d", i)))
	}

	first, err := f.svc.GetConversationMessages(ctx, conv, 0, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages() error = %v", err)
	}
	second, err := f.svc.GetConversationMessages(ctx, conv, 0, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages() error = %v", err)
	}

	if len(first) != len(sent) || len(second) != len(sent) {
		t.Fatalf("fetched %d and %d messages, want %d", len(first), len(second), len(sent))
	}
	for i := range sent {
		if first[i].ID != sent[i].ID || second[i].ID != sent[i].ID {
			t.Fatalf("position %d: got %s / %s, want %s", i, first[i].ID, second[i].ID, sent[i].ID)
		}
		if i > 0 && !first[i-1].Before(&first[i]) {
			t.Fatalf("messages %d and %d out of order", i-1, i)
		}
	}
}

func TestGetConversationMessages_Paging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.cfg.PageCap = 3

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		send(t, f.svc, conv, "a", fmt.Sprintf("m%d", i))
	}

	tests := []struct {
		name          string
		limit, offset int
		wantFirst     string
		wantLen       int
	}{
		{"default is capped", 0, 0, "m0", 3},
		{"oversized is capped", 50, 0, "m0", 3},
		{"explicit limit", 2, 0, "m0", 2},
		{"offset", 2, 3, "m3", 2},
		{"negative offset", 1, -4, "m0", 1},
		{"past the end", 3, 10, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := f.svc.GetConversationMessages(ctx, conv, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("GetConversationMessages() error = %v", err)
			}
			if len(msgs) != tt.wantLen {
				t.Fatalf("got %d messages, want %d", len(msgs), tt.wantLen)
			}
			if tt.wantLen > 0 && msgs[0].Content != tt.wantFirst {
				t.Fatalf("first message = %q, want %q", msgs[0].Content, tt.wantFirst)
			}
		})
	}
}

func TestMarkMessagesAsRead_CursorIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	send(t, f.svc, conv, "a", "one")
	send(t, f.svc, conv, "a", "two")

	first, err := f.svc.MarkMessagesAsRead(ctx, conv, "b")
	if err != nil {
		t.Fatalf("MarkMessagesAsRead() error = %v", err)
	}
	second, err := f.svc.MarkMessagesAsRead(ctx, conv, "b")
	if err != nil {
		t.Fatalf("MarkMessagesAsRead() error = %v", err)
	}
	if second.Before(*first) {
		t.Fatalf("cursor moved backwards from %v to %v", first, second)
	}

	if got := summaryFor(t, f.svc, "b", conv); got.UnreadCount != 0 || got.HasUnread {
		t.Fatalf("unread after two mark-read calls = %d", got.UnreadCount)
	}

	if _, err := f.svc.MarkMessagesAsRead(ctx, conv, "intruder"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("MarkMessagesAsRead(intruder) error = %v, want unauthorized", err)
	}
}

func TestUnread_FlagFollowsCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "p", "m", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	send(t, f.svc, conv, "p", "hi")

	if got := summaryFor(t, f.svc, "m", conv); !got.HasUnread || got.UnreadCount != 1 {
		t.Fatalf("recipient summary = %+v, want unread", got)
	}

	if _, err := f.svc.MarkMessagesAsRead(ctx, conv, "m"); err != nil {
		t.Fatalf("MarkMessagesAsRead() error = %v", err)
	}
	if got := summaryFor(t, f.svc, "m", conv); got.HasUnread {
		t.Fatalf("recipient still has unread after mark-read: %+v", got)
	}

	send(t, f.svc, conv, "p", "are you there?")
	if got := summaryFor(t, f.svc, "m", conv); !got.HasUnread || got.UnreadCount != 1 {
		t.Fatalf("new message not unread: %+v", got)
	}
}

func TestUnread_OwnMessagesNeverCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		send(t, f.svc, conv, "a", "ping")
	}

	if got := summaryFor(t, f.svc, "a", conv); got.HasUnread || got.UnreadCount != 0 {
		t.Fatalf("sender sees own messages as unread: %+v", got)
	}

	// marking read never stamps the caller's own messages
	if _, err := f.svc.MarkMessagesAsRead(ctx, conv, "a"); err != nil {
		t.Fatalf("MarkMessagesAsRead() error = %v", err)
	}
	msgs, err := f.svc.GetConversationMessages(ctx, conv, 0, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages() error = %v", err)
	}
	for _, m := range msgs {
		if m.ReadAt != nil {
			t.Fatalf("own message %s got read_at", m.ID)
		}
	}
}

func TestDeleteMessage_ExcludedFromListAndUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	keep := send(t, f.svc, conv, "a", "keep")
	drop := send(t, f.svc, conv, "a", "drop")

	if err := f.svc.DeleteMessage(ctx, conv, drop.ID, "b"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("DeleteMessage() by recipient error = %v, want unauthorized", err)
	}
	if err := f.svc.DeleteMessage(ctx, conv, drop.ID, "a"); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, conv, drop.ID, "a"); err != nil {
		t.Fatalf("repeated DeleteMessage() error = %v", err)
	}

	msgs, err := f.svc.GetConversationMessages(ctx, conv, 0, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != keep.ID {
		t.Fatalf("messages after delete = %+v, want only %s", msgs, keep.ID)
	}

	got := summaryFor(t, f.svc, "b", conv)
	if got.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1 (deleted message excluded)", got.UnreadCount)
	}
	if got.LastMessage == nil || got.LastMessage.ID != keep.ID {
		t.Fatalf("last message = %+v, want %s", got.LastMessage, keep.ID)
	}
}

func TestScenario_PatientAndMentor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SyncProfile(ctx, model.Profile{UserID: "u1", DisplayName: "Pat", Role: model.RolePatient}); err != nil {
		t.Fatalf("SyncProfile() error = %v", err)
	}

	conv1, err := f.svc.GetOrCreateConversation(ctx, "u1", "u2", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	m1 := send(t, f.svc, conv1, "u1", "Hello")
	if m1.ID == "" || m1.CreatedAt.IsZero() {
		t.Fatalf("store did not assign id/created_at: %+v", m1)
	}

	got := summaryFor(t, f.svc, "u2", conv1)
	if !got.HasUnread {
		t.Fatal("u2 should have unread")
	}
	if got.LastMessage == nil || got.LastMessage.Content != "Hello" {
		t.Fatalf("last message = %+v, want Hello", got.LastMessage)
	}
	if got.OtherParticipant.UserID != "u1" || got.OtherParticipant.DisplayName != "Pat" {
		t.Fatalf("other participant = %+v", got.OtherParticipant)
	}

	if _, err := f.svc.MarkMessagesAsRead(ctx, conv1, "u2"); err != nil {
		t.Fatalf("MarkMessagesAsRead() error = %v", err)
	}
	if got := summaryFor(t, f.svc, "u2", conv1); got.HasUnread {
		t.Fatal("u2 should have no unread after mark-read")
	}

	before := f.store.inserts.Load()
	if _, err := f.svc.SendMessage(ctx, conv1, "u1", nil); !apperror.Is(err, apperror.KindInvalidInput) {
		t.Fatalf("SendMessage(nil) error = %v, want invalid input", err)
	}
	if f.store.inserts.Load() != before {
		t.Fatal("nil request reached storage")
	}
}

func TestSendMessage_RepairsMissingSchemaOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	for _, stmt := range []string{"DROP VIEW conversation_summaries", "DROP TABLE messages"} {
		if _, err := f.db.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	msg, err := f.svc.SendMessage(ctx, conv, "a", &model.SendMessageRequest{Content: "after repair"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.Content != "after repair" {
		t.Fatalf("SendMessage() = %+v", msg)
	}

	if got := f.store.ensures.Load(); got != 1 {
		t.Fatalf("EnsureSchema called %d times, want 1", got)
	}
	if got := f.store.inserts.Load(); got != 2 {
		t.Fatalf("InsertMessage called %d times, want 2 (initial + one retry)", got)
	}

	msgs, err := f.svc.GetConversationMessages(ctx, conv, 0, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("messages after repair = %+v", msgs)
	}
}

func TestSendMessage_RepairPolicy(t *testing.T) {
	schemaMissing := apperror.New(apperror.KindSchemaMissing, "no such table: messages")

	tests := []struct {
		name        string
		insertErrs  []error
		ensureErr   error
		wantKind    apperror.Kind
		wantInserts int
		wantEnsures int
	}{
		{
			name:        "repair fails",
			insertErrs:  []error{schemaMissing},
			ensureErr:   errors.New("permission denied"),
			wantKind:    apperror.KindMessagingNotConfigured,
			wantInserts: 1,
			wantEnsures: 1,
		},
		{
			name:        "retry still missing",
			insertErrs:  []error{schemaMissing, schemaMissing},
			wantKind:    apperror.KindMessageSendFailed,
			wantInserts: 2,
			wantEnsures: 1,
		},
		{
			name:        "repair then success",
			insertErrs:  []error{schemaMissing},
			wantInserts: 2,
			wantEnsures: 1,
		},
		{
			name:        "unavailable is not repaired",
			insertErrs:  []error{apperror.New(apperror.KindStorageUnavailable, "timeout")},
			wantKind:    apperror.KindStorageUnavailable,
			wantInserts: 1,
		},
		{
			name:        "generic failure",
			insertErrs:  []error{apperror.New(apperror.KindInternal, "constraint")},
			wantKind:    apperror.KindMessageSendFailed,
			wantInserts: 1,
		},
		{
			name:        "non-participant",
			insertErrs:  []error{apperror.New(apperror.KindUnauthorized, "not a participant")},
			wantKind:    apperror.KindUnauthorized,
			wantInserts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &scriptedStore{insertErrs: tt.insertErrs, ensureErr: tt.ensureErr}
			svc := NewMessagingService(fake, nil, Config{}, logger.NewNop())

			_, err := svc.SendMessage(context.Background(), "c1", "u1", &model.SendMessageRequest{Content: "hi"})
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("SendMessage() error = %v", err)
				}
			} else if !apperror.Is(err, tt.wantKind) {
				t.Fatalf("SendMessage() error = %v, want %s", err, tt.wantKind)
			}

			if fake.inserts != tt.wantInserts {
				t.Errorf("inserts = %d, want %d", fake.inserts, tt.wantInserts)
			}
			if fake.ensures != tt.wantEnsures {
				t.Errorf("ensures = %d, want %d", fake.ensures, tt.wantEnsures)
			}
		})
	}
}

func TestSendMessage_RepairFailureKeepsOriginalCause(t *testing.T) {
	original := apperror.New(apperror.KindSchemaMissing, "no such table: messages")
	fake := &scriptedStore{insertErrs: []error{original}, ensureErr: errors.New("read-only database")}
	svc := NewMessagingService(fake, nil, Config{}, logger.NewNop())

	_, err := svc.SendMessage(context.Background(), "c1", "u1", &model.SendMessageRequest{Content: "hi"})
	if !errors.Is(err, original) {
		t.Fatalf("SendMessage() error = %v, want it to wrap the original failure", err)
	}
}

func TestSendMessage_PublishesToSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateConversation(ctx, "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	sub, err := f.svc.Subscribe(ctx, conv, "b")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	sent := send(t, f.svc, conv, "a", "live")

	select {
	case got := <-sub.Messages():
		if got.ID != sent.ID {
			t.Fatalf("received %s, want %s", got.ID, sent.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no live event received")
	}

	if _, err := f.svc.Subscribe(ctx, conv, "intruder"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("Subscribe(intruder) error = %v, want unauthorized", err)
	}
	if _, err := f.svc.Subscribe(ctx, "missing", "b"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("Subscribe(missing) error = %v, want not found", err)
	}
}

func TestSendMessage_PublishFailureIsNotReturned(t *testing.T) {
	fake := &scriptedStore{}
	broker := &failingBroker{}
	svc := NewMessagingService(fake, broker, Config{}, logger.NewNop())

	msg, err := svc.SendMessage(context.Background(), "c1", "u1", &model.SendMessageRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg == nil || broker.publishes != 1 {
		t.Fatalf("message = %v, publishes = %d", msg, broker.publishes)
	}
}

func TestSendMessage_CompletesAfterCallerCancels(t *testing.T) {
	f := newFixture(t)

	conv, err := f.svc.GetOrCreateConversation(context.Background(), "a", "b", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.SendMessage(ctx, conv, "a", &model.SendMessageRequest{Content: "still sent"}); err != nil {
		t.Fatalf("SendMessage() with canceled context error = %v", err)
	}
}

func TestGetUserConversations_DeterministicOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []model.Profile{
		{UserID: "zoe", DisplayName: "Zoe"},
		{UserID: "amy", DisplayName: "Amy"},
		{UserID: "bob", DisplayName: "Bob"},
		{UserID: "cat", DisplayName: "Cat"},
	} {
		if err := f.svc.SyncProfile(ctx, p); err != nil {
			t.Fatalf("SyncProfile() error = %v", err)
		}
	}

	convWith := func(other string) string {
		id, err := f.svc.GetOrCreateConversation(ctx, "me", other, nil)
		if err != nil {
			t.Fatalf("GetOrCreateConversation() error = %v", err)
		}
		return id
	}
	zoe := convWith("zoe")
	amy := convWith("amy")
	bob := convWith("bob")
	cat := convWith("cat")

	send(t, f.svc, bob, "me", "older, read")
	send(t, f.svc, cat, "me", "newer, read")
	send(t, f.svc, zoe, "zoe", "unread")

	summaries, err := f.svc.GetUserConversations(ctx, "me")
	if err != nil {
		t.Fatalf("GetUserConversations() error = %v", err)
	}

	var got []string
	for _, s := range summaries {
		got = append(got, s.ConversationID)
	}
	want := []string{zoe, cat, bob, amy}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSyncProfile_RequiresUserID(t *testing.T) {
	svc := NewMessagingService(&scriptedStore{}, nil, Config{}, logger.NewNop())
	if err := svc.SyncProfile(context.Background(), model.Profile{}); !apperror.Is(err, apperror.KindInvalidInput) {
		t.Fatalf("SyncProfile() error = %v, want invalid input", err)
	}
}

func TestClampLimit(t *testing.T) {
	svc := NewMessagingService(&scriptedStore{}, nil, Config{}, logger.NewNop())

	for limit, want := range map[int]int{-1: 200, 0: 200, 10: 10, 200: 200, 500: 200} {
		if got := svc.ClampLimit(limit); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", limit, got, want)
		}
	}
}
