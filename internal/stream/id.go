package stream

import (
	"strconv"
	"strings"
	"time"
)

// EntryTime extracts the timestamp component of a stream entry id
// ("millis-seq"). Returns false if the id does not carry one.
func EntryTime(id string) (time.Time, bool) {
	millis, _, found := strings.Cut(id, "-")
	if !found {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// FormatEntryTime renders the entry id's timestamp for the transcript,
// e.g. "02/01/2006 15:04:05". Returns "" when the id has no timestamp.
func FormatEntryTime(id string) string {
	t, ok := EntryTime(id)
	if !ok {
		return ""
	}
	return t.Local().Format("02/01/2006 15:04:05")
}
