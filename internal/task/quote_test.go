package task

import "testing"

func TestQuote(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"simple", "simple"},
		{"a/b./c-d_e", "a/b./c-d_e"},
		{"a b", "'a b'"},
		{"$HOME", "'$HOME'"},
		{"it's", `'it'"'"'s'`},
		{"a;rm -rf /", `'a;rm -rf /'`},
		{"*", "'*'"},
	}
	for _, c := range cases {
		if got := Quote(c.in); got != c.want {
			t.Errorf("Quote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuoteAll(t *testing.T) {
	got := QuoteAll([]string{"echo", "a b", "$HOME"})
	want := "echo 'a b' '$HOME'"
	if got != want {
		t.Errorf("QuoteAll = %q, want %q", got, want)
	}
}

func TestDedent(t *testing.T) {
	in := `
		local x=1
		if true; then
			echo "$x"
		fi`
	want := "local x=1\nif true; then\n\techo \"$x\"\nfi"
	if got := Dedent(in); got != want {
		t.Errorf("Dedent = %q, want %q", got, want)
	}
}

func TestDedentFlushLeft(t *testing.T) {
	in := "echo a\necho b"
	if got := Dedent(in); got != in {
		t.Errorf("Dedent changed flush text: %q", got)
	}
}
