package job

import "testing"

func TestParseStatusRoundTrip(t *testing.T) {
	cases := []Status{Waiting, Delayed, Active, Completed, Failed, Paused, Unknown}
	for _, s := range cases {
		got, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s.String(), err)
		}
		if got != s {
			t.Fatalf("expected %v to round-trip, got %v", s, got)
		}
	}
}

func TestParseStatusRejectsUnknownString(t *testing.T) {
	if _, err := ParseStatus("not-a-status"); err == nil {
		t.Fatal("expected an error for an unrecognized status string")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	s := Active
	text, err := s.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "active" {
		t.Fatalf("expected \"active\", got %q", text)
	}
	var got Status
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if got != Active {
		t.Fatalf("expected Active, got %v", got)
	}
}
