package card

import (
	"encoding/json"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"2h", "9d", "Tc", "Js", "Qh", "Kd", "As"} {
		c, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", s, err)
		}
		if c.String() != s {
			t.Fatalf("round trip %q -> %q", s, c.String())
		}
	}
}

func TestParseTenAlias(t *testing.T) {
	a, err := Parse("10h")
	if err != nil {
		t.Fatalf("Parse(10h) err: %v", err)
	}
	b := MustParse("Th")
	if a != b {
		t.Fatalf("expected 10h == Th, got %v vs %v", a, b)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "A", "1s", "Ax", "Zd", "  "} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestCardJSONWireFormat(t *testing.T) {
	raw, err := json.Marshal(MustParse("As"))
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	if string(raw) != `{"rank":"A","suit":"s"}` {
		t.Fatalf("unexpected wire form: %s", raw)
	}

	var c Card
	if err := json.Unmarshal([]byte(`{"rank":"T","suit":"d"}`), &c); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if c != MustParse("Td") {
		t.Fatalf("unexpected card: %v", c)
	}
}

func TestMustParseAll(t *testing.T) {
	cards := MustParseAll("5c 4h 3s 2d 9h")
	if len(cards) != 5 {
		t.Fatalf("expected 5 cards, got %d", len(cards))
	}
	if cards[0] != MustParse("5c") || cards[4] != MustParse("9h") {
		t.Fatalf("unexpected cards: %v", cards)
	}
}
