package markethours

import (
	"testing"
	"time"
)

func cst(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, CST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before open", cst(2026, 3, 2, 9, 29), false},
		{"morning open", cst(2026, 3, 2, 9, 30), true},
		{"morning", cst(2026, 3, 2, 10, 45), true},
		{"lunch break", cst(2026, 3, 2, 11, 30), false},
		{"lunch", cst(2026, 3, 2, 12, 15), false},
		{"afternoon open", cst(2026, 3, 2, 13, 0), true},
		{"last minute", cst(2026, 3, 2, 14, 59), true},
		{"close", cst(2026, 3, 2, 15, 0), false},
		{"saturday", cst(2026, 3, 7, 10, 0), false},
		{"spring festival", cst(2026, 2, 18, 10, 0), false},
		{"national day", cst(2026, 10, 6, 10, 0), false},
		// 02:00 UTC is 10:00 CST.
		{"utc input", time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen(%v) = %v, want %v", tc.name, tc.t, got, tc.want)
		}
	}
}

func TestNextOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"early morning", cst(2026, 3, 2, 8, 0), cst(2026, 3, 2, 9, 30)},
		{"in morning session", cst(2026, 3, 2, 10, 0), cst(2026, 3, 2, 9, 30)},
		{"lunch", cst(2026, 3, 2, 12, 0), cst(2026, 3, 2, 13, 0)},
		{"after close", cst(2026, 3, 2, 16, 0), cst(2026, 3, 3, 9, 30)},
		{"friday evening", cst(2026, 3, 6, 16, 0), cst(2026, 3, 9, 9, 30)},
		{"before spring festival", cst(2026, 2, 13, 16, 0), cst(2026, 2, 24, 9, 30)},
	}
	for _, tc := range cases {
		if got := NextOpen(tc.t); !got.Equal(tc.want) {
			t.Errorf("%s: NextOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAddHoliday(t *testing.T) {
	day := cst(2027, 3, 3, 10, 0)
	if !IsMarketOpen(day) {
		t.Fatal("expected open before marking the holiday")
	}
	AddHoliday(2027, time.March, 3)
	if IsMarketOpen(day) {
		t.Fatal("expected closed after marking the holiday")
	}
}

func TestStatusString(t *testing.T) {
	if s := StatusString(cst(2026, 3, 2, 10, 0)); s != "交易中" {
		t.Fatalf("unexpected open status %q", s)
	}
	if s := StatusString(cst(2026, 3, 2, 16, 0)); s != "休市，下次开盘 03-03 09:30" {
		t.Fatalf("unexpected closed status %q", s)
	}
}
