package logger

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("x")) != "fail" {
		t.Fatalf("unexpected status mapping")
	}
}

func TestRoundMS(t *testing.T) {
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %v", got)
	}
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative duration must round to 0, got %v", got)
	}
}

func TestSummarizeStrings(t *testing.T) {
	got, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	if got != "a, b" || !truncated {
		t.Fatalf("SummarizeStrings = %q, %v", got, truncated)
	}
	got, truncated = SummarizeStrings([]string{"a"}, 2)
	if got != "a" || truncated {
		t.Fatalf("SummarizeStrings = %q, %v", got, truncated)
	}
}

func TestErrAttrSanitizes(t *testing.T) {
	attr := ErrAttr(errors.New("bad\x00 input " + strings.Repeat("x", 600)))
	if attr.Key != "err" {
		t.Fatalf("key = %q", attr.Key)
	}
	v := attr.Value.String()
	if strings.ContainsRune(v, 0) {
		t.Fatalf("control character kept: %q", v)
	}
	if n := len([]rune(v)); n != 512 {
		t.Fatalf("length = %d, want 512", n)
	}
}
