package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

type echoCommands struct{}

func (echoCommands) Handle(_ context.Context, text string) string { return "re: " + text }

type chanReplier struct{ ch chan [2]string }

func (r chanReplier) Reply(_ context.Context, id, text string) error {
	r.ch <- [2]string{id, text}
	return nil
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/feishu/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func messageEventBody(eventID, token, senderType, msgType, text string) string {
	content, _ := json.Marshal(map[string]string{"text": text})
	ev := map[string]any{
		"schema": "2.0",
		"header": map[string]any{
			"event_id":    eventID,
			"event_type":  EventReceiveMessage,
			"create_time": "1772414400000",
			"token":       token,
			"app_id":      "cli_a",
			"tenant_key":  "tk",
		},
		"event": map[string]any{
			"sender": map[string]any{
				"sender_id":   map[string]any{"open_id": "ou_1"},
				"sender_type": senderType,
				"tenant_key":  "tk",
			},
			"message": map[string]any{
				"message_id":   "om_1",
				"create_time":  "1772414400000",
				"chat_id":      "oc_1",
				"chat_type":    "group",
				"message_type": msgType,
				"content":      string(content),
			},
		},
	}
	b, _ := json.Marshal(ev)
	return string(b)
}

func expectReply(t *testing.T, ch chan [2]string) [2]string {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
	}
	return [2]string{}
}

func expectNoReply(t *testing.T, ch chan [2]string) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected reply %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventHandler_URLVerification(t *testing.T) {
	h := NewEventHandler(context.Background(), echoCommands{}, nil, "vt")

	rec := post(t, h, `{"type":"url_verification","challenge":"abc","token":"vt"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]string
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["challenge"] != "abc" {
		t.Fatalf("challenge not echoed: %s", rec.Body.String())
	}
}

func TestEventHandler_RejectsBadToken(t *testing.T) {
	replies := chanReplier{ch: make(chan [2]string, 1)}
	h := NewEventHandler(context.Background(), echoCommands{}, replies, "vt")

	rec := post(t, h, `{"type":"url_verification","challenge":"abc","token":"nope"}`)
	if strings.Contains(rec.Body.String(), `"abc"`) {
		t.Fatalf("challenge echoed for a bad token: %s", rec.Body.String())
	}

	post(t, h, messageEventBody("ev_bad", "nope", "user", "text", "list"))
	expectNoReply(t, replies.ch)
}

func TestEventHandler_MessageDispatchesAndReplies(t *testing.T) {
	replies := chanReplier{ch: make(chan [2]string, 1)}
	h := NewEventHandler(context.Background(), echoCommands{}, replies, "vt")

	rec := post(t, h, messageEventBody("ev_1", "vt", "user", "text", "  @_user_1 add 600519 "))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := expectReply(t, replies.ch)
	if got[0] != "om_1" {
		t.Errorf("reply to wrong message %s", got[0])
	}
	if got[1] != "re: @_user_1 add 600519" {
		t.Errorf("unexpected reply %q", got[1])
	}
}

func TestEventHandler_RedeliveryRunsOnce(t *testing.T) {
	replies := chanReplier{ch: make(chan [2]string, 2)}
	h := NewEventHandler(context.Background(), echoCommands{}, replies, "vt")

	body := messageEventBody("ev_dup", "vt", "user", "text", "add 600519")
	post(t, h, body)
	expectReply(t, replies.ch)

	if rec := post(t, h, body); rec.Code != http.StatusOK {
		t.Fatalf("redelivery must still be acknowledged, got %d", rec.Code)
	}
	expectNoReply(t, replies.ch)

	post(t, h, messageEventBody("ev_next", "vt", "user", "text", "list"))
	expectReply(t, replies.ch)
}

func TestEventHandler_IgnoresNonTextAndBots(t *testing.T) {
	replies := chanReplier{ch: make(chan [2]string, 2)}
	h := NewEventHandler(context.Background(), echoCommands{}, replies, "vt")

	post(t, h, messageEventBody("ev_img", "vt", "user", "image", "x"))
	post(t, h, messageEventBody("ev_app", "vt", "app", "text", "list"))
	expectNoReply(t, replies.ch)
}

func TestEventHandler_BadRequests(t *testing.T) {
	replies := chanReplier{ch: make(chan [2]string, 1)}
	h := NewEventHandler(context.Background(), echoCommands{}, replies, "vt")

	if rec := post(t, h, "{not json"); rec.Code == http.StatusOK {
		t.Fatalf("expected an error status, got %d", rec.Code)
	}
	expectNoReply(t, replies.ch)

	req := httptest.NewRequest(http.MethodGet, "/feishu/event", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRecentEvents(t *testing.T) {
	r := newRecentEvents(3)

	for i := 0; i < 3; i++ {
		if r.seen("ev_" + strconv.Itoa(i)) {
			t.Fatalf("ev_%d reported as duplicate on first sight", i)
		}
	}
	if !r.seen("ev_0") {
		t.Fatal("ev_0 should be a duplicate")
	}

	// ev_3 evicts the oldest entry.
	r.seen("ev_3")
	if r.seen("ev_0") {
		t.Fatal("ev_0 should have been evicted")
	}
	if r.seen("") || r.seen("") {
		t.Fatal("empty ids are never duplicates")
	}
}
