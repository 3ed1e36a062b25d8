package parser

import (
	"strings"
	"testing"
)

func TestTextExtractor_Paragraphs(t *testing.T) {
	input := "Para one line one.\nPara one line two.\n\n\n\nPara two."
	got, err := (&TextExtractor{}).Extract(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Para one line one.\nPara one line two.\n\nPara two."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTextExtractor_WhitespaceOnlyLines(t *testing.T) {
	got, err := (&TextExtractor{}).Extract(strings.NewReader("Para one.\n   \r\nPara two.\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Para one.\n\nPara two." {
		t.Errorf("unexpected output %q", got)
	}
}

func TestCSVExtractor_HeaderValuePairs(t *testing.T) {
	input := "name,amount\nacme,120\nglobex,75,extra\n"
	got, err := (&CSVExtractor{}).Extract(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "name, amount\nname: acme, amount: 120\nname: globex, amount: 75, extra"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHTMLExtractor_SkipsChrome(t *testing.T) {
	input := `<html><head><title>Quarterly Report</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Revenue</h1>
<p>Revenue grew <b>12%</b>.</p>
<script>var x = 1;</script>
<div>Loose text</div>
<ul><li>North</li><li>South</li></ul>
<footer>Copyright</footer>
</body></html>`

	got, err := (&HTMLExtractor{}).Extract(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Quarterly Report", "Revenue", "Revenue grew 12%.", "Loose text", "North", "South"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got %q", want, got)
		}
	}
	for _, bad := range []string{"Home | About", "var x", "Copyright", "p{}"} {
		if strings.Contains(got, bad) {
			t.Errorf("expected %q to be skipped, got %q", bad, got)
		}
	}
}
