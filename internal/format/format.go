// Package format turns raw API field values into display strings. Every
// free-text value shown in the terminal goes through Escape first.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"

	"trackdash/internal/model"
)

const Placeholder = "-"

// Escape makes untrusted text safe to embed in the terminal: escape
// sequences are stripped, line breaks and tabs become spaces and any other
// control characters are dropped. Markup such as "<script>" is left as
// literal text.
func Escape(s string) string {
	if s == "" {
		return ""
	}
	s = ansi.Strip(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Or escapes s, substituting fallback when s is blank.
func Or(s, fallback string) string {
	if e := strings.TrimSpace(Escape(s)); e != "" {
		return e
	}
	return fallback
}

// Dash escapes s, substituting the placeholder when blank.
func Dash(s string) string { return Or(s, Placeholder) }

// Join escapes and joins the non-blank parts with sep, or returns the
// placeholder when every part is blank.
func Join(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if e := strings.TrimSpace(Escape(p)); e != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return Placeholder
	}
	return strings.Join(out, sep)
}

// Truncate shortens s to w cells, appending an ellipsis when cut.
func Truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= w {
		return s
	}
	return ansi.Truncate(s, w, "…")
}

// Unit is the relative-age bucket used by TimeAgo, ordered by size.
type Unit int

const (
	JustNow Unit = iota
	Minutes
	Hours
	Days
	Months
	Years
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// Age reports the largest bucket that d reaches and the truncated amount of
// it. Negative durations (clock skew) count as just now.
func Age(d time.Duration) (Unit, int) {
	switch {
	case d >= year:
		return Years, int(d / year)
	case d >= month:
		return Months, int(d / month)
	case d >= day:
		return Days, int(d / day)
	case d >= time.Hour:
		return Hours, int(d / time.Hour)
	case d >= time.Minute:
		return Minutes, int(d / time.Minute)
	}
	return JustNow, 0
}

var unitSuffix = map[Unit]string{Years: "y", Months: "mo", Days: "d", Hours: "h", Minutes: "m"}

// TimeAgo renders t relative to now, e.g. "3d" or "just now".
func TimeAgo(t, now time.Time) string {
	u, n := Age(now.Sub(t))
	if u == JustNow {
		return "just now"
	}
	return strconv.Itoa(n) + unitSuffix[u]
}

// SinceISO renders an API timestamp relative to now, or the placeholder.
func SinceISO(ts string, now time.Time) string {
	t, ok := model.ParseTime(ts)
	if !ok {
		return Placeholder
	}
	return TimeAgo(t, now)
}

// Timestamp renders an API timestamp in local time; unparseable values are
// shown escaped as received.
func Timestamp(ts string) string {
	t, ok := model.ParseTime(ts)
	if !ok {
		return Dash(ts)
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Location renders "city, country", falling back to the country or "Unknown".
func Location(city, country string) string {
	c := strings.TrimSpace(Escape(city))
	k := Or(country, "Unknown")
	if c == "" {
		return k
	}
	return c + ", " + k
}

// Coordinates renders "lat, lon" or the placeholder. A zero component means
// the service could not place the address.
func Coordinates(lat, lon *float64) string {
	if lat == nil || lon == nil || *lat == 0 || *lon == 0 {
		return Placeholder
	}
	return fmt.Sprintf("%s, %s", strconv.FormatFloat(*lat, 'f', -1, 64), strconv.FormatFloat(*lon, 'f', -1, 64))
}

// Count renders a non-negative counter; negatives clamp to zero.
func Count(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}

// Decimal renders averages without trailing zeros.
func Decimal(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
