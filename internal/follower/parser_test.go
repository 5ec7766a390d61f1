package follower

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	fixedNow := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixedNow }

	cases := []struct {
		name        string
		line        string
		wantOK      bool
		wantMessage string
		wantHasTS   bool
		wantTS      time.Time
	}{
		{
			name:        "timestamp and message",
			line:        "2024-01-01T00:00:00Z hello world",
			wantOK:      true,
			wantMessage: "hello world",
			wantHasTS:   true,
			wantTS:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "no timestamp, message only",
			line:        "just a plain line",
			wantOK:      true,
			wantMessage: "just a plain line",
			wantHasTS:   false,
			wantTS:      fixedNow,
		},
		{
			name:        "single word, no space",
			line:        "noop",
			wantOK:      true,
			wantMessage: "noop",
			wantHasTS:   false,
			wantTS:      fixedNow,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
		{
			name:   "whitespace only",
			line:   "   \r",
			wantOK: false,
		},
		{
			name:        "trailing carriage return stripped",
			line:        "2024-01-01T00:00:00Z hello\r",
			wantOK:      true,
			wantMessage: "hello",
			wantHasTS:   true,
			wantTS:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLine(tc.line, now)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.Message != tc.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tc.wantMessage)
			}
			if got.HasTimestamp != tc.wantHasTS {
				t.Errorf("HasTimestamp = %v, want %v", got.HasTimestamp, tc.wantHasTS)
			}
			if !got.Timestamp.Equal(tc.wantTS) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tc.wantTS)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	cases := []struct {
		name  string
		chunk []byte
		want  []string
	}{
		{name: "empty", chunk: nil, want: nil},
		{name: "single trailing newline", chunk: []byte("a\nb\nc\n"), want: []string{"a", "b", "c"}},
		{name: "no trailing newline", chunk: []byte("a\nb"), want: []string{"a", "b"}},
		{name: "blank lines preserved mid-chunk", chunk: []byte("a\n\nb\n"), want: []string{"a", "", "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitLines(tc.chunk)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
