package osm

import (
	"fmt"
	"strconv"
	"time"

	"github.com/NERVsystems/osmread/pkg/core"
)

// timestampLayout is the positional prefix every OSM timestamp starts with.
const timestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp converts the leading "YYYY-MM-DDTHH:MM:SS" of s into seconds
// since the Unix epoch. The fields are read by position and taken as UTC;
// anything after the 19th character, such as a "Z" suffix, is ignored.
func ParseTimestamp(s string) (int64, error) {
	if len(s) < len(timestampLayout) {
		return 0, core.NewError(core.ErrMalformedTimestamp,
			fmt.Sprintf("%q is shorter than %d characters", s, len(timestampLayout)))
	}

	var fields [6]int
	spans := [6][2]int{{0, 4}, {5, 7}, {8, 10}, {11, 13}, {14, 16}, {17, 19}}
	for i, sp := range spans {
		v, err := strconv.Atoi(s[sp[0]:sp[1]])
		if err != nil {
			return 0, core.NewError(core.ErrMalformedTimestamp, fmt.Sprintf("%q", s)).WithCause(err)
		}
		fields[i] = v
	}

	year, month, day := fields[0], fields[1], fields[2]
	hour, minute, second := fields[3], fields[4], fields[5]

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)

	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject anything that moved.
	if year < 1 || t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return 0, core.NewError(core.ErrMalformedTimestamp, fmt.Sprintf("%q is not a valid date-time", s))
	}

	return t.Unix(), nil
}

// FormatTimestamp renders epoch seconds the way OSM documents carry them.
func FormatTimestamp(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
