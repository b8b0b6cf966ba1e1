package tier

import "testing"

func TestOrdering(t *testing.T) {
	cases := []struct {
		current  Tier
		required Tier
		want     bool
	}{
		{None, None, true},
		{None, Basic, false},
		{None, Pro, false},
		{None, Enterprise, false},
		{Basic, None, true},
		{Basic, Basic, true},
		{Basic, Pro, false},
		{Basic, Enterprise, false},
		{Pro, Basic, true},
		{Pro, Pro, true},
		{Pro, Enterprise, false},
		{Enterprise, Basic, true},
		{Enterprise, Pro, true},
		{Enterprise, Enterprise, true},
	}
	for _, tc := range cases {
		if got := IsSufficient(tc.current, tc.required); got != tc.want {
			t.Errorf("IsSufficient(%s, %s) = %v, want %v", tc.current, tc.required, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	if got := Parse("PRO"); got != Pro {
		t.Fatalf("Parse(PRO) = %s", got)
	}
	if got := Parse("  enterprise "); got != Enterprise {
		t.Fatalf("Parse trimmed = %s", got)
	}
	for _, raw := range []string{"", "gold", "premium", "Basic+"} {
		if got := Parse(raw); got != None {
			t.Errorf("Parse(%q) = %s, want none", raw, got)
		}
	}
}
