package archiver

import "testing"

func TestFullKey(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "deposit-1", "deposit-1"},
		{"audit/", "deposit-1", "audit/deposit-1"},
	}

	for _, c := range cases {
		a := &Archiver{keyPrefix: c.prefix}
		if got := a.fullKey(c.key); got != c.want {
			t.Errorf("fullKey(%q) with prefix %q = %q, want %q", c.key, c.prefix, got, c.want)
		}
	}
}
