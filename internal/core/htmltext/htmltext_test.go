package htmltext

import (
	"strings"
	"testing"
)

func TestStrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"breaks", "one<br>two<br />three", "one\ntwo\nthree"},
		{"paragraphs", "<p>first</p><p>second</p>", "first\nsecond"},
		{"nested tags", `<p>hi <a href="https://x.test/@a">@<span>a</span></a></p>`, "hi @a"},
		{"named entities", "a &amp; b &lt;c&gt; &quot;d&quot; &#39;e&#39;&nbsp;f", `a & b &lt;c&gt; "d" 'e' f`},
		{"numeric entities", "caf&#233; &#x41;", "café A"},
		{"encoded markup survives", "<p>use &lt;b&gt; for bold</p>", "use &lt;b&gt; for bold"},
		{"double-encoded markup", "&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;", "&lt;b&gt;bold&lt;/b&gt;"},
		{"bad numeric entity kept", "x &#xZZ; y &#0; z", "x &#xZZ; y &#0; z"},
		{"whitespace collapse", "a   b\t\tc\n\n\nd", "a b c\nd"},
		{"block closers", "<div>a</div><blockquote>b</blockquote><h2>c</h2>", "a\nb\nc"},
		{"empty", "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Strip(c.in); got != c.want {
				t.Fatalf("Strip(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestStripIdempotent(t *testing.T) {
	inputs := []string{
		"<p>hello <b>world</b></p>",
		"one<br>two",
		"a   b\n\n\nc",
		`<p>hi <a href="https://x.test">link</a><br/>bye</p>`,
		"",
		// entity-encoded markup must not re-materialize as strippable tags
		"<p>use &lt;b&gt; for bold</p>",
		"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;",
		"1 &lt; 2 &gt; 0",
		"caf&#233; &amp;amp; friends",
		"a < b > c",
	}
	for _, in := range inputs {
		once := Strip(in)
		twice := Strip(once)
		if once != twice {
			t.Fatalf("Strip not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
	// the text content survives the first pass instead of degrading into
	// markup that a later pass would swallow
	if got := Strip("<p>use &lt;b&gt; for bold</p>"); !strings.Contains(got, "b") || got != "use &lt;b&gt; for bold" {
		t.Fatalf("encoded markup lost: %q", got)
	}
}

func TestSanitizeDropsScripts(t *testing.T) {
	in := `<p>ok</p><script>alert(1)</script><img src="x" onerror="evil()">`
	out := Sanitize(in)
	if got := Strip(out); got != "ok" {
		t.Fatalf("sanitized text = %q", got)
	}
	if strings.Contains(out, "script") || strings.Contains(out, "onerror") {
		t.Fatalf("sanitized output still carries active content: %q", out)
	}
}
