package follower

import (
	"strings"
	"time"
)

// ParsedLine is the result of parsing one raw log line. HasTimestamp is
// false when no RFC 3339 prefix could be found, in which case Timestamp
// holds "now" for display purposes only — dedup keys this case as 0,
// exactly as spec.md §4.2 describes.
type ParsedLine struct {
	Timestamp    time.Time
	Message      string
	HasTimestamp bool
}

// ParseLine applies the line-parsing rule shared by the follower's control
// loop and the one-shot collector: split on the first space, try RFC 3339
// on the left half, and fall back to "whole line is the message, now is
// the timestamp" on any parse failure. The second return value is false
// only when the line is empty after trimming trailing whitespace.
func ParseLine(line string) (ParsedLine, bool) {
	return parseLine(line, time.Now)
}

// parseLine splits a raw line on the first space into a timestamp
// candidate and a message. If the candidate doesn't parse as RFC 3339,
// the whole line becomes the message and the timestamp is now.
func parseLine(line string, now func() time.Time) (ParsedLine, bool) {
	trimmed := strings.TrimRight(line, " \t\r\n")
	if trimmed == "" {
		return ParsedLine{}, false
	}

	spaceIdx := strings.IndexByte(trimmed, ' ')
	if spaceIdx < 0 {
		return ParsedLine{Timestamp: now(), Message: trimmed}, true
	}

	candidate := trimmed[:spaceIdx]
	message := trimmed[spaceIdx+1:]

	ts, err := time.Parse(time.RFC3339, candidate)
	if err != nil {
		return ParsedLine{Timestamp: now(), Message: trimmed}, true
	}

	return ParsedLine{Timestamp: ts, Message: message, HasTimestamp: true}, true
}

// SplitLines splits a chunk of received bytes into individual lines,
// dropping the trailing empty element a terminal newline produces.
func SplitLines(chunk []byte) []string {
	return splitLines(chunk)
}

// splitLines splits a chunk of received bytes into individual lines,
// dropping the trailing empty element a terminal newline produces.
func splitLines(chunk []byte) []string {
	text := string(chunk)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
