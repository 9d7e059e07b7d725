package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/1308774130/StockSentinel/internal/model"
)

type memPersister struct {
	mu    sync.Mutex
	snap  model.Snapshot
	found bool
	saves int
	fail  error
}

func (m *memPersister) Load(ctx context.Context) (model.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.found, nil
}

func (m *memPersister) Save(ctx context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.fail != nil {
		return m.fail
	}
	m.snap = snap
	m.found = true
	return nil
}

func (m *memPersister) last() (model.Snapshot, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.saves
}

func TestAdd_Idempotence(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()

	if err := s.Add(ctx, model.WatchedStock{Code: "600519", Name: "贵州茅台"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := s.Add(ctx, model.WatchedStock{Code: "600519"})
	if !errors.Is(err, ErrAlreadyPresent) {
		t.Fatalf("expected ErrAlreadyPresent, got %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("expected 1 stock, got %d", s.Len())
	}
	st, ok := s.Get("600519")
	if !ok || st.Name != "贵州茅台" {
		t.Fatalf("duplicate add must not overwrite, got %+v", st)
	}
	if st.AddedAt.IsZero() {
		t.Fatal("AddedAt must default to now")
	}

	snap, saves := p.last()
	if saves != 1 {
		t.Fatalf("rejected add must not save, got %d saves", saves)
	}
	if len(snap.Stocks) != 1 || snap.Stocks[0].Code != "600519" {
		t.Fatalf("persisted snapshot mismatch: %+v", snap)
	}
}

func TestRemove(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	for _, c := range []string{"600519", "000001", "300750"} {
		s.Add(ctx, model.WatchedStock{Code: c})
	}

	if err := s.Remove(ctx, "000001"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got := s.Codes()
	want := []string{"600519", "300750"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !s.Has("300750") || s.Has("000001") {
		t.Fatal("index out of sync after remove")
	}
}

func TestUpdateSetting(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		field Field
		value float64
		ok    bool
	}{
		{"interval min", FieldPollInterval, 10, true},
		{"interval max", FieldPollInterval, 600, true},
		{"interval too small", FieldPollInterval, 9, false},
		{"interval fractional", FieldPollInterval, 30.5, false},
		{"overbought ok", FieldRSIOverbought, 85, true},
		{"overbought too low", FieldRSIOverbought, 10, false},
		{"overbought at 100", FieldRSIOverbought, 100, false},
		{"oversold ok", FieldRSIOversold, 25, true},
		{"oversold at 50", FieldRSIOversold, 50, false},
		{"oversold zero", FieldRSIOversold, 0, false},
		{"pct ok", FieldPctChange, 3.5, true},
		{"pct at 20", FieldPctChange, 20, true},
		{"pct zero", FieldPctChange, 0, false},
		{"volume ok", FieldVolumeRatio, 1.5, true},
		{"volume at 1", FieldVolumeRatio, 1, false},
		{"cooldown zero", FieldCooldown, 0, true},
		{"cooldown max", FieldCooldown, 86400, true},
		{"cooldown negative", FieldCooldown, -1, false},
	}
	for _, tc := range cases {
		s := New(nil)
		before := s.Settings()
		got, err := s.UpdateSetting(ctx, tc.field, tc.value)
		if tc.ok {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			if got != s.Settings() {
				t.Errorf("%s: returned settings differ from stored", tc.name)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected *ValidationError, got %v", tc.name, err)
			continue
		}
		if ve.Field != tc.field || ve.Range == "" {
			t.Errorf("%s: bad validation error %+v", tc.name, ve)
		}
		if s.Settings() != before {
			t.Errorf("%s: settings changed on error", tc.name)
		}
	}
}

func TestUpdateSetting_CrossField(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	if _, err := s.UpdateSetting(ctx, FieldRSIOversold, 45); err != nil {
		t.Fatalf("oversold 45: %v", err)
	}
	// 50 < v < 100 holds but v must exceed oversold too.
	if _, err := s.UpdateSetting(ctx, FieldRSIOverbought, 60); err != nil {
		t.Fatalf("overbought 60: %v", err)
	}
	if _, err := s.UpdateSetting(ctx, FieldRSIOversold, 49); err != nil {
		t.Fatalf("oversold 49 below overbought 60: %v", err)
	}

	st := s.Settings()
	if st.RSIOversold >= st.RSIOverbought {
		t.Fatalf("invariant broken: %+v", st)
	}
}

func TestUpdateSetting_Persists(t *testing.T) {
	p := &memPersister{}
	s := New(p)

	if _, err := s.UpdateSetting(context.Background(), FieldRSIOverbought, 85); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap, _ := p.last()
	if snap.Settings.RSIOverbought != 85 {
		t.Fatalf("expected persisted overbought 85, got %v", snap.Settings.RSIOverbought)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	p := &memPersister{fail: errors.New("disk full")}
	s := New(p)

	if err := s.Add(context.Background(), model.WatchedStock{Code: "600519"}); err != nil {
		t.Fatalf("add must succeed despite save failure: %v", err)
	}
	if !s.Has("600519") {
		t.Fatal("in-memory state must keep the stock")
	}
}

func TestHooks(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	s.Add(ctx, model.WatchedStock{Code: "600519"})

	var added, removed []string
	s.Subscribe(Hooks{
		OnAdd:    func(st model.WatchedStock) { added = append(added, st.Code) },
		OnRemove: func(code string) { removed = append(removed, code) },
	})
	if fmt.Sprint(added) != "[600519]" {
		t.Fatalf("Subscribe must replay existing stocks, got %v", added)
	}

	s.Add(ctx, model.WatchedStock{Code: "000001"})
	s.Add(ctx, model.WatchedStock{Code: "000001"})
	s.Remove(ctx, "600519")
	s.Remove(ctx, "600519")

	if fmt.Sprint(added) != "[600519 000001]" {
		t.Fatalf("unexpected adds %v", added)
	}
	if fmt.Sprint(removed) != "[600519]" {
		t.Fatalf("unexpected removes %v", removed)
	}
}

func TestOpen_RestoreAndSeed(t *testing.T) {
	ctx := context.Background()
	restored := model.DefaultSettings()
	restored.RSIOverbought = 90

	p := &memPersister{
		found: true,
		snap: model.Snapshot{
			Stocks:   []model.WatchedStock{{Code: "600519", Name: "贵州茅台"}},
			Settings: restored,
		},
	}
	seedSettings := model.DefaultSettings()
	seedSettings.RSIOverbought = 70
	seed := model.Snapshot{
		Stocks:   []model.WatchedStock{{Code: "600519"}, {Code: "000001"}},
		Settings: seedSettings,
	}

	s, err := Open(ctx, p, seed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Settings().RSIOverbought != 90 {
		t.Fatalf("persisted settings must win over seed, got %v", s.Settings().RSIOverbought)
	}
	if fmt.Sprint(s.Codes()) != "[600519 000001]" {
		t.Fatalf("seed stocks must be merged, got %v", s.Codes())
	}
	if st, _ := s.Get("600519"); st.Name != "贵州茅台" {
		t.Fatalf("restored stock must keep its name, got %+v", st)
	}
	snap, saves := p.last()
	if saves != 1 || len(snap.Stocks) != 2 {
		t.Fatalf("merged state must be saved once, saves=%d snap=%+v", saves, snap)
	}
}

func TestOpen_DropsDuplicatePersistedStocks(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{
		found: true,
		snap: model.Snapshot{
			Stocks: []model.WatchedStock{
				{Code: "600519", Name: "贵州茅台"},
				{Code: "000001"},
				{Code: "600519"},
			},
			Settings: model.DefaultSettings(),
		},
	}

	s, err := Open(ctx, p, model.Snapshot{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if fmt.Sprint(s.Codes()) != "[600519 000001]" {
		t.Fatalf("duplicate must be dropped, got %v", s.Codes())
	}
	if st, _ := s.Get("600519"); st.Name != "贵州茅台" {
		t.Fatalf("first occurrence must win, got %+v", st)
	}
	if err := s.Remove(ctx, "600519"); err != nil || s.Has("600519") {
		t.Fatalf("remove after dedup must clear the code, err=%v", err)
	}
	snap, saves := p.last()
	if saves < 1 || len(snap.Stocks) != 1 {
		t.Fatalf("cleaned list must be saved, saves=%d snap=%+v", saves, snap)
	}
}

func TestOpen_Empty(t *testing.T) {
	s, err := Open(context.Background(), nil, model.Snapshot{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Len() != 0 || s.Settings() != model.DefaultSettings() {
		t.Fatalf("expected empty list and defaults, got %d %+v", s.Len(), s.Settings())
	}
}

func TestOpen_InvalidSeed(t *testing.T) {
	bad := model.DefaultSettings()
	bad.RSIOversold = 90
	if _, err := Open(context.Background(), nil, model.Snapshot{Settings: bad}); err == nil {
		t.Fatal("expected error for invalid seed settings")
	}
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		code := fmt.Sprintf("6000%02d", i)
		go func() {
			defer wg.Done()
			s.Add(ctx, model.WatchedStock{Code: code})
			s.UpdateSetting(ctx, FieldCooldown, 60)
		}()
		go func() {
			defer wg.Done()
			_ = s.Codes()
			_ = s.Settings()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	snap, _ := p.last()
	if len(snap.Stocks) != 20 {
		t.Fatalf("last save must reflect the final state, got %d stocks", len(snap.Stocks))
	}
}
