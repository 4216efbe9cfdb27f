// Package logparser implements the rule-based line parser (C7): the
// timestamp+chain-id prefix split, the first-match-wins rule table, and the
// canonical rule set. Grounded on a log-watcher's regex bodies, rebuilt
// around an explicit, strictly-validated
// "[YYYY.MM.DD-HH.MM.SS:mmm][ chainID]" prefix instead of a loose
// `[0-9.:-]+` scan that silently accepts impossible calendar dates.
package logparser

import (
	"regexp"
	"strconv"
	"time"

	"github.com/opsquad/supervisor/internal/ident"
)

var prefixRe = regexp.MustCompile(`^\[(\d{4})\.(\d{2})\.(\d{2})-(\d{2})\.(\d{2})\.(\d{2}):(\d{3})\]\[\s*(\d+)\]\s*(.*)$`)

// splitPrefix extracts the timestamp and chain-id from a raw log line and
// returns the remaining body. Unlike time.Parse, it rejects calendar-impossible
// dates (e.g. Feb 30) explicitly rather than silently rolling them over.
func splitPrefix(line string) (ts time.Time, chain ident.ChainID, body string, ok bool) {
	m := prefixRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, ident.ChainID(0), "", false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])
	millis, _ := strconv.Atoi(m[7])

	if !validCalendarDate(year, month, day) || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, ident.ChainID(0), "", false
	}

	ts = time.Date(year, time.Month(month), day, hour, minute, second, millis*int(time.Millisecond), time.UTC)

	chain, ok = ident.ParseChainID(m[8])
	if !ok {
		return time.Time{}, ident.ChainID(0), "", false
	}

	return ts, chain, m[9], true
}

// validCalendarDate rejects dates time.Date would otherwise silently
// normalize, such as February 30th.
func validCalendarDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	daysInMonth := []int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	max := daysInMonth[month-1]
	if month == 2 && isLeapYear(year) {
		max = 29
	}
	return day <= max
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
