// Package railtime holds the time and date codecs shared by the CIF, VSTP
// and TRUST paths: WTT time quantisation, CIF six-digit dates, the deleted
// sentinel and the TRUST daylight-saving correction.
package railtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NeverDeleted is the soft-deletion sentinel: a row is live while
// deleted > now. The value is carried verbatim in the schema for
// compatibility with the upstream feed database.
const NeverDeleted uint32 = 0xFFFFFFFF

// CIFDateSentinel marks "runs forever" in six-digit CIF date fields.
const CIFDateSentinel = "999999"

var ErrBadTime = errors.New("railtime: malformed time field")

// SortTime quantises a WTT time into 15-second units of the day.
// Input is "hhmm" optionally followed by 'H' (half minute). A blank field
// returns (-1, nil) so callers can fall through to the next candidate.
func SortTime(s string) (int, error) {
	s = strings.TrimRight(s, " ")
	if s == "" {
		return -1, nil
	}
	if len(s) != 4 && len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	hh, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	mm, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	t := (hh*60 + mm) * 4
	if len(s) == 5 {
		switch s[4] {
		case 'H':
			t += 2
		case ' ':
		default:
			return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
		}
	}
	return t, nil
}

// CanonTime normalises a VSTP time field to the canonical five-character
// CIF form: "hhmm " or "hhmmH". VSTP expresses the half minute either as a
// trailing 'H' or as the digit pair "30" in seconds position ("hhmm30"), and
// occasionally as a bare '3'.
func CanonTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	switch len(s) {
	case 4:
		return s + " ", nil
	case 5:
		if s[4] == 'H' || s[4] == '3' {
			return s[:4] + "H", nil
		}
	case 6:
		switch s[4:] {
		case "00":
			return s[:4] + " ", nil
		case "30":
			return s[:4] + "H", nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrBadTime, s)
}

// ParseCIFDate converts a six-digit yymmdd CIF date to midnight UTC.
// The 999999 sentinel maps to NeverDeleted's date equivalent (2038 horizon
// is avoided by pinning sentinel handling at the caller); here it returns
// (zero, true).
func ParseCIFDate(s string) (time.Time, bool, error) {
	if s == CIFDateSentinel {
		return time.Time{}, true, nil
	}
	t, err := time.Parse("060102", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("railtime: bad CIF date %q: %w", s, err)
	}
	return t.UTC(), false, nil
}

// ParseISODate converts a VSTP "YYYY-MM-DD" datestamp to midnight UTC.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("railtime: bad ISO date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// DaysBitmap packs a seven-character Mon..Sun "0"/"1" string into bits 0..6.
func DaysBitmap(s string) (byte, error) {
	if len(s) != 7 {
		return 0, fmt.Errorf("railtime: days_run %q not 7 chars", s)
	}
	var b byte
	for i := 0; i < 7; i++ {
		switch s[i] {
		case '1':
			b |= 1 << uint(i)
		case '0', ' ':
		default:
			return 0, fmt.Errorf("railtime: days_run %q has bad char", s)
		}
	}
	return b, nil
}

// RunsOn reports whether the bitmap covers the given weekday.
// time.Weekday counts Sunday as 0; the bitmap counts Monday as bit 0.
func RunsOn(bitmap byte, day time.Weekday) bool {
	idx := (int(day) + 6) % 7
	return bitmap&(1<<uint(idx)) != 0
}

// CorrectTrustTimestamp converts a TRUST decimal-milliseconds epoch string to
// a time. The upstream feed stamps messages in a local-clock convention that
// runs one hour ahead while the receiving zone is in daylight saving, so one
// hour is subtracted when loc is in DST at the nominal instant.
func CorrectTrustTimestamp(ms string, loc *time.Location) (time.Time, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("railtime: bad TRUST timestamp %q: %w", ms, err)
	}
	t := time.UnixMilli(n)
	if loc != nil && isDST(t.In(loc)) {
		t = t.Add(-time.Hour)
	}
	return t, nil
}

func isDST(t time.Time) bool {
	_, offset := t.Zone()
	// January offset is the standard-time baseline for northern-hemisphere
	// zones, which is what the feed convention assumes.
	jan := time.Date(t.Year(), time.January, 15, 12, 0, 0, 0, t.Location())
	_, janOff := jan.Zone()
	return offset > janOff
}
