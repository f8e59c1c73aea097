package asaas

import "testing"

func TestValueToCents(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"150.00", 15000},
		{"150", 15000},
		{"0.01", 1},
		{"99.9", 9990},
		{"1234.56", 123456},
	}
	for _, c := range cases {
		got, err := ValueToCents(c.raw)
		if err != nil {
			t.Fatalf("%q: %v", c.raw, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestValueToCentsRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "10.001"} {
		if _, err := ValueToCents(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}
