package slug

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Joe's Café", "joes-cafe"},
		{"joes cafe", "joes-cafe"},
		{"  Hair & Nails  ", "hair-nails"},
		{"Crème Brûlée -- Bakery!!", "creme-brulee-bakery"},
		{"ÁÉÍÓÚ ñ", "aeiou-n"},
		{"Joe’s Diner", "joes-diner"},
		{"24/7 Plumbing", "24-7-plumbing"},
		{"---", ""},
		{"", ""},
		{"!!!", ""},
		{"already-a-slug", "already-a-slug"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugify_DeterministicAndIdempotent(t *testing.T) {
	t.Parallel()

	names := []string{"Joe's Café", "Ünïcödé Straße 12", "a  b\tc", "ÉCOLE"}
	for _, n := range names {
		first := Slugify(n)
		for i := 0; i < 5; i++ {
			if got := Slugify(n); got != first {
				t.Fatalf("Slugify(%q) run %d = %q; want %q", n, i, got, first)
			}
		}
		if again := Slugify(first); again != first {
			t.Fatalf("Slugify(Slugify(%q)) = %q; want %q", n, again, first)
		}
	}
}

func TestStripNonAlnum(t *testing.T) {
	t.Parallel()

	if got := stripNonAlnum("ChIJ-_ab 12!"); got != "chijab12" {
		t.Fatalf("stripNonAlnum = %q; want %q", got, "chijab12")
	}
}
