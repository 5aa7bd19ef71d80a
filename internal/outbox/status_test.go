package outbox

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"  Processing ", StatusProcessing, true},
		{"COMPLETED", StatusCompleted, true},
		{"failed", StatusFailed, true},
		{"stale", StatusStale, true},
		{"", "", false},
		{"done", "", false},
	}
	for _, c := range cases {
		got, ok := ParseStatus(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusPending},
		{StatusFailed, StatusPending},
		{StatusCompleted, StatusStale},
		{StatusStale, StatusPending},
	}
	for _, c := range allowed {
		if !c.from.CanTransition(c.to) {
			t.Errorf("CanTransition(%s -> %s) = false, want true", c.from, c.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusPending},
		{StatusPending, StatusCompleted},
		{StatusFailed, StatusCompleted},
		{StatusStale, StatusCompleted},
	}
	for _, c := range forbidden {
		if c.from.CanTransition(c.to) {
			t.Errorf("CanTransition(%s -> %s) = true, want false", c.from, c.to)
		}
	}
}

func TestPermanentErrorWrapping(t *testing.T) {
	base := Permanent(errTest)
	if !IsPermanent(base) {
		t.Error("IsPermanent(Permanent(err)) = false")
	}
	if IsPermanent(errTest) {
		t.Error("IsPermanent(plain err) = true")
	}
}
