package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sampleAlert() Alert {
	return Alert{
		Code: "600519", Name: "贵州茅台",
		Price: 1850, PrevClose: 1758, Open: 1760, High: 1855, Low: 1755,
		PctChange: 5.2332, Amount: 420000,
		Signals: []string{"RSI(6) = 100.0 （超买）", "日内波动 +5.23%", "量比 2.3x （成交量放大）"},
		At:      time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
}

func TestAlert_Direction(t *testing.T) {
	cases := map[float64]Direction{1.2: DirectionUp, -0.5: DirectionDown, 0: DirectionFlat}
	for pct, want := range cases {
		if got := (Alert{PctChange: pct}).Direction(); got != want {
			t.Errorf("pct %v: got %s, want %s", pct, got, want)
		}
	}
}

func TestAlert_Text(t *testing.T) {
	a := sampleAlert()
	text := a.Text()
	for _, want := range append(a.Signals, "贵州茅台 (600519)", "1850.00", "1758.00", "+5.23%", "2026-03-02 10:30:00") {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "**") {
		t.Error("plain text must not contain bold markers")
	}
	if !strings.Contains(a.Markdown(), "**贵州茅台 (600519)**") {
		t.Error("markdown must bold the subject")
	}
}

func TestAlert_SubjectWithoutName(t *testing.T) {
	if got := (Alert{Code: "000001"}).Subject(); got != "000001" {
		t.Fatalf("expected bare code, got %q", got)
	}
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Send(ctx context.Context, a Alert) error {
	f.calls++
	return f.err
}

func TestMulti_AttemptsAll(t *testing.T) {
	failing := &fakeNotifier{err: errors.New("down")}
	ok := &fakeNotifier{}
	m := Multi{failing, ok, NewLogNotifier()}

	err := m.Send(context.Background(), sampleAlert())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("every backend must be attempted: %d %d", failing.calls, ok.calls)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["code"] != "600519" || got["direction"] != "up" {
		t.Fatalf("unexpected payload %v", got)
	}
	if sigs, _ := got["signals"].([]interface{}); len(sigs) != 3 {
		t.Fatalf("expected 3 signals, got %v", got["signals"])
	}
}

func TestWebhookNotifier_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), sampleAlert()); err == nil {
		t.Fatal("expected error on 500")
	}
}
