package sim

import (
	"strings"
	"testing"
	"unicode/utf8"

	"simulearn/internal/tester"
)

func TestTruncateIsRuneSafe(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := truncate(long, 80)
	tester.True(t, utf8.ValidString(got), "truncation must not split runes")
	tester.Eq(t, got, strings.Repeat("é", 80)+"...")

	tester.Eq(t, truncate("short", 80), "short")
	tester.Eq(t, truncate("  padded  ", 80), "padded")
}

func TestTopicOrFirstBeat(t *testing.T) {
	tester.Eq(t, topicOrFirstBeat("  volcano  ", nil), "volcano")

	history := []Message{
		{Role: RoleUser, Text: "   "},
		{Role: RoleModel, Text: "The lab hums quietly"},
	}
	tester.Eq(t, topicOrFirstBeat("", history), "The lab hums quietly")

	tester.Eq(t, topicOrFirstBeat("", nil), "untitled run")
}
