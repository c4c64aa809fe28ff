package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func doJSON(t *testing.T, env *testEnv, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, data
}

func decodeJSON(t *testing.T, data []byte, out any) {
	t.Helper()

	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal response %q: %v", data, err)
	}
}

func TestRegisterAndLoginAPI(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodPost, "/api/register", "",
		map[string]string{"username": "alice", "password": "password123"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d: %s", resp.StatusCode, body)
	}
	var authResp AuthResponse
	decodeJSON(t, body, &authResp)
	if authResp.Token == "" {
		t.Fatal("register returned no token")
	}

	resp, _ = doJSON(t, env, http.MethodPost, "/api/register", "",
		map[string]string{"username": "alice", "password": "password456"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, env, http.MethodPost, "/api/login", "",
		map[string]string{"username": "alice", "password": "password123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, env, http.MethodPost, "/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, env, http.MethodPost, "/api/register", "",
		map[string]string{"username": "ab", "password": "password123"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short username status = %d", resp.StatusCode)
	}
}

func TestGuestLoginAPI(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodPost, "/api/guest", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("guest status = %d: %s", resp.StatusCode, body)
	}
	var authResp AuthResponse
	decodeJSON(t, body, &authResp)

	claims, err := env.auth.ValidateToken(authResp.Token)
	if err != nil {
		t.Fatalf("guest token invalid: %v", err)
	}
	if !claims.IsGuest {
		t.Fatal("guest claim not set")
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := doJSON(t, env, http.MethodGet, "/api/conversations", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, env, http.MethodGet, "/api/conversations", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMeAndUserLookupAPI(t *testing.T) {
	env := newTestEnv(t)

	aliceToken, alice := registerUser(t, env, "alice")
	_, bob := registerUser(t, env, "bob")

	resp, body := doJSON(t, env, http.MethodGet, "/api/me", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d: %s", resp.StatusCode, body)
	}
	var me UserResponse
	decodeJSON(t, body, &me)
	if me.ID != alice.ID || me.Username != "alice" || me.IsGuest {
		t.Fatalf("unexpected profile: %+v", me)
	}

	resp, _ = doJSON(t, env, http.MethodGet, "/api/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status = %d", resp.StatusCode)
	}

	// Username lookup resolves the id needed for friend requests.
	resp, body = doJSON(t, env, http.MethodGet, "/api/users/bob", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d: %s", resp.StatusCode, body)
	}
	var found UserResponse
	decodeJSON(t, body, &found)
	if found.ID != bob.ID || found.Username != "bob" {
		t.Fatalf("unexpected lookup result: %+v", found)
	}

	resp, _ = doJSON(t, env, http.MethodGet, "/api/users/nobody", aliceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", resp.StatusCode)
	}
}

func TestFriendAPIFlow(t *testing.T) {
	env := newTestEnv(t)

	aliceToken, alice := registerUser(t, env, "alice")
	bobToken, bob := registerUser(t, env, "bob")

	// Alice sends a friend request to bob.
	resp, body := doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/request", bob.ID), aliceToken, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("request status = %d: %s", resp.StatusCode, body)
	}
	var friend FriendResponse
	decodeJSON(t, body, &friend)
	if friend.Status != "pending" || friend.UserID != alice.ID || friend.FriendID != bob.ID {
		t.Fatalf("unexpected friendship: %+v", friend)
	}

	// A second request conflicts.
	resp, _ = doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/request", bob.ID), aliceToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate request status = %d", resp.StatusCode)
	}

	// Self-friending is rejected.
	resp, _ = doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/request", alice.ID), aliceToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self request status = %d", resp.StatusCode)
	}

	// The requester cannot accept its own request.
	resp, _ = doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", bob.ID), aliceToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self accept status = %d", resp.StatusCode)
	}

	// Bob accepts.
	resp, body = doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", alice.ID), bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, env, http.MethodGet, "/api/friends?status=accepted", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Friends []FriendResponse `json:"friends"`
	}
	decodeJSON(t, body, &list)
	if len(list.Friends) != 1 || list.Friends[0].Status != "accepted" {
		t.Fatalf("unexpected friends list: %+v", list.Friends)
	}
}

func TestConversationAPIFlow(t *testing.T) {
	env := newTestEnv(t)

	aliceToken, alice := registerUser(t, env, "alice")
	bobToken, bob := registerUser(t, env, "bob")
	malloryToken, _ := registerUser(t, env, "mallory")

	// Private conversations require friendship.
	resp, body := doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken,
		map[string]any{"type": "private", "participant_ids": []int64{bob.ID}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unfriendly private conversation status = %d: %s", resp.StatusCode, body)
	}

	doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/request", bob.ID), aliceToken, nil)
	doJSON(t, env, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", alice.ID), bobToken, nil)

	resp, body = doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken,
		map[string]any{"type": "private", "participant_ids": []int64{bob.ID}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation status = %d: %s", resp.StatusCode, body)
	}
	var conv ConversationResponse
	decodeJSON(t, body, &conv)
	if conv.Type != "private" || conv.CreatedBy != alice.ID {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	resp, body = doJSON(t, env, http.MethodGet, "/api/conversations", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list conversations status = %d", resp.StatusCode)
	}
	var convList struct {
		Conversations []ConversationResponse `json:"conversations"`
	}
	decodeJSON(t, body, &convList)
	if len(convList.Conversations) != 1 || convList.Conversations[0].ID != conv.ID {
		t.Fatalf("unexpected conversations: %+v", convList.Conversations)
	}

	// Seed some history and page through it.
	for _, content := range []string{"one", "two", "three"} {
		if _, err := env.chat.SendMessage(context.Background(), alice.ID, conv.ID, content, ""); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	resp, body = doJSON(t, env, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages?limit=2", conv.ID), bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages status = %d: %s", resp.StatusCode, body)
	}
	var msgList struct {
		Messages []MessageResponse `json:"messages"`
	}
	decodeJSON(t, body, &msgList)
	if len(msgList.Messages) != 2 || msgList.Messages[0].Content != "three" {
		t.Fatalf("unexpected messages: %+v", msgList.Messages)
	}

	before := msgList.Messages[1].ID
	resp, body = doJSON(t, env, http.MethodGet,
		fmt.Sprintf("/api/conversations/%d/messages?before_id=%d", conv.ID, before), bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("paged messages status = %d", resp.StatusCode)
	}
	msgList.Messages = nil
	decodeJSON(t, body, &msgList)
	if len(msgList.Messages) != 1 || msgList.Messages[0].Content != "one" {
		t.Fatalf("unexpected page: %+v", msgList.Messages)
	}

	// Outsiders cannot read the history.
	resp, _ = doJSON(t, env, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", conv.ID), malloryToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403", resp.StatusCode)
	}
}
