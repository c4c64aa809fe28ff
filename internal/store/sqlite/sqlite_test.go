package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/behex/chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedUser(t, s, "alice")
	if created.ID == 0 || created.Username != "alice" || created.IsGuest {
		t.Fatalf("unexpected user: %+v", created)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("id mismatch: %d != %d", byName.ID, created.ID)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.CreateUser(ctx, "alice", "hash"); err == nil {
		t.Fatal("duplicate username should fail")
	}
}

func TestCreateGuestUser(t *testing.T) {
	s := newTestStore(t)

	guest, err := s.CreateGuestUser(context.Background(), "0123456789abcdef")
	if err != nil {
		t.Fatalf("CreateGuestUser failed: %v", err)
	}
	if !guest.IsGuest {
		t.Fatal("guest flag not set")
	}
	if guest.Username != "guest-01234567" {
		t.Fatalf("unexpected guest username: %q", guest.Username)
	}
	if guest.SessionID != "0123456789abcdef" {
		t.Fatalf("unexpected session id: %q", guest.SessionID)
	}
}

func TestCreateConversationWithParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	conv, err := s.CreateConversation(ctx, store.ConversationTypePrivate, "", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.Type != store.ConversationTypePrivate || conv.CreatedBy != alice.ID {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	ids, err := s.ListParticipants(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != alice.ID || ids[1] != bob.ID {
		t.Fatalf("unexpected participants: %v", ids)
	}

	for _, userID := range []int64{alice.ID, bob.ID} {
		ok, err := s.IsParticipant(ctx, userID, conv.ID)
		if err != nil || !ok {
			t.Fatalf("IsParticipant(%d) = %v, %v", userID, ok, err)
		}
	}
	ok, err := s.IsParticipant(ctx, 999, conv.ID)
	if err != nil || ok {
		t.Fatalf("IsParticipant(999) = %v, %v", ok, err)
	}
}

func TestGetPrivateConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	conv, err := s.CreateConversation(ctx, store.ConversationTypePrivate, "", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Found in either direction.
	for _, pair := range [][2]int64{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		found, err := s.GetPrivateConversation(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("GetPrivateConversation(%v) failed: %v", pair, err)
		}
		if found.ID != conv.ID {
			t.Fatalf("wrong conversation: %d != %d", found.ID, conv.ID)
		}
	}

	if _, err := s.GetPrivateConversation(ctx, alice.ID, carol.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUserConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	c1, err := s.CreateConversation(ctx, store.ConversationTypePrivate, "", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	c2, err := s.CreateConversation(ctx, store.ConversationTypeGroup, "team", alice.ID, []int64{alice.ID, carol.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	convs, err := s.ListUserConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListUserConversations failed: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != c1.ID || convs[1].ID != c2.ID {
		t.Fatalf("unexpected conversations: %+v", convs)
	}

	convs, err = s.ListUserConversations(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListUserConversations failed: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != c1.ID {
		t.Fatalf("unexpected conversations for bob: %+v", convs)
	}
}

func TestSaveAndListMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	conv, err := s.CreateConversation(ctx, store.ConversationTypePrivate, "", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		msg := &store.Message{
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Content:        content,
			Type:           store.MessageTypeText,
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
		if msg.ID == 0 || msg.CreatedAt.IsZero() {
			t.Fatalf("SaveMessage did not fill id/created_at: %+v", msg)
		}
	}

	// Newest first.
	msgs, err := s.ListMessages(ctx, conv.ID, 10, nil)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "third" || msgs[2].Content != "first" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	// Limit applies.
	msgs, err = s.ListMessages(ctx, conv.ID, 2, nil)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "third" {
		t.Fatalf("unexpected limited messages: %+v", msgs)
	}

	// Cursor pagination.
	before := msgs[1].ID
	msgs, err = s.ListMessages(ctx, conv.ID, 10, &before)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "first" {
		t.Fatalf("unexpected page: %+v", msgs)
	}
}

func TestMarkConversationRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	conv, err := s.CreateConversation(ctx, store.ConversationTypePrivate, "", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := s.MarkConversationRead(ctx, bob.ID, conv.ID, time.Now()); err != nil {
		t.Fatalf("MarkConversationRead failed: %v", err)
	}

	// Non-participant gets ErrNotFound.
	if err := s.MarkConversationRead(ctx, 999, conv.ID, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFriendLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	f, err := s.CreateFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("CreateFriendRequest failed: %v", err)
	}
	if f.Status != store.FriendStatusPending {
		t.Fatalf("new request status = %q", f.Status)
	}

	if _, err := s.CreateFriendRequest(ctx, alice.ID, bob.ID); err == nil {
		t.Fatal("duplicate friend request should fail")
	}

	ok, err := s.IsFriend(ctx, alice.ID, bob.ID)
	if err != nil || ok {
		t.Fatalf("pending request should not count as friends: %v, %v", ok, err)
	}

	if err := s.UpdateFriendStatus(ctx, bob.ID, alice.ID, store.FriendStatusAccepted); err != nil {
		t.Fatalf("UpdateFriendStatus failed: %v", err)
	}

	// Accepted in either direction.
	for _, pair := range [][2]int64{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		ok, err := s.IsFriend(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Fatalf("IsFriend(%v) = %v, %v", pair, ok, err)
		}
	}

	accepted := store.FriendStatusAccepted
	friends, err := s.ListFriends(ctx, alice.ID, &accepted)
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != f.ID {
		t.Fatalf("unexpected friends list: %+v", friends)
	}

	pending := store.FriendStatusPending
	friends, err = s.ListFriends(ctx, alice.ID, &pending)
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("expected no pending friendships, got %+v", friends)
	}

	if err := s.UpdateFriendStatus(ctx, alice.ID, 999, store.FriendStatusDeclined); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
