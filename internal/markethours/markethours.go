// Package markethours knows the A-share trading calendar: two continuous
// sessions per trading day, 09:30–11:30 and 13:00–15:00 Beijing time,
// Monday to Friday, excluding exchange holidays.
package markethours

import (
	"fmt"
	"time"
)

// CST is China Standard Time (UTC+8), the exchanges' local time.
var CST = time.FixedZone("CST", 8*3600)

// Session is one continuous trading window, in minutes after midnight CST.
type Session struct {
	Open, Close int
}

// Sessions are the continuous-auction windows of a trading day.
var Sessions = []Session{
	{Open: 9*60 + 30, Close: 11*60 + 30},
	{Open: 13 * 60, Close: 15 * 60},
}

// IsMarketOpen returns true if t falls within a trading session.
func IsMarketOpen(t time.Time) bool {
	cst := t.In(CST)
	if !IsTradingDay(cst) {
		return false
	}
	hm := cst.Hour()*60 + cst.Minute()
	for _, s := range Sessions {
		if hm >= s.Open && hm < s.Close {
			return true
		}
	}
	return false
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(CST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	cst := t.In(CST)
	return IsWeekday(cst) && !IsHoliday(cst)
}

// NextOpen returns the start of the next session at or after t. During a
// session it returns that session's open.
func NextOpen(t time.Time) time.Time {
	cst := t.In(CST)
	d := time.Date(cst.Year(), cst.Month(), cst.Day(), 0, 0, 0, 0, CST)
	for i := 0; i < 30; i++ { // longest closure is well under a month
		if IsTradingDay(d) {
			for _, s := range Sessions {
				open := d.Add(time.Duration(s.Open) * time.Minute)
				end := d.Add(time.Duration(s.Close) * time.Minute)
				if cst.Before(end) {
					return open
				}
			}
		}
		d = d.AddDate(0, 0, 1)
		cst = d
	}
	return d
}

// StatusString returns a short human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return "交易中"
	}
	next := NextOpen(t).In(CST)
	return fmt.Sprintf("休市，下次开盘 %s", next.Format("01-02 15:04"))
}
