package whatsapp

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11999999999", "11999999999"},
		{"+5511999999999", "11999999999"},
		{"(11) 99999-9999", "11999999999"},
		{"11 99999-9999", "11999999999"},
		{"5511999999999", "11999999999"},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWireFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11999999999", "5511999999999"},
		{"+55 11 99999-9999", "5511999999999"},
		// Legacy 8-digit mobile gets the nine inserted.
		{"551188888888", "5511988888888"},
	}

	for _, tc := range cases {
		if got := WireFormat(tc.in); got != tc.want {
			t.Errorf("WireFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSuffixKey(t *testing.T) {
	a := SuffixKey("+5511999999999")
	b := SuffixKey("11999999999")
	if a != b {
		t.Fatalf("expected matching suffix keys, got %q and %q", a, b)
	}
	if len(a) != 9 {
		t.Fatalf("expected 9-digit key, got %q", a)
	}
}
