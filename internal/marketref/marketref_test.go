package marketref

import "testing"

func TestParseTwoComponent(t *testing.T) {
	ref, err := Parse("binance.spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Exchange != "binance" || ref.Type != "spot" || ref.HasSubtype() {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestParseThreeComponent(t *testing.T) {
	ref, err := Parse("okx.swap.linear")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Exchange != "okx" || ref.Type != "swap" || ref.Subtype != "linear" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if !ref.HasSubtype() {
		t.Fatal("expected HasSubtype() == true")
	}
}

func TestParseInvalidArity(t *testing.T) {
	cases := []string{"binance", "binance.swap.linear.extra", ""}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", c)
		}
	}
}

func TestString(t *testing.T) {
	if got := (Ref{Exchange: "binance", Type: "spot"}).String(); got != "binance.spot" {
		t.Errorf("String() = %q, want %q", got, "binance.spot")
	}
	if got := (Ref{Exchange: "okx", Type: "swap", Subtype: "linear"}).String(); got != "okx.swap.linear" {
		t.Errorf("String() = %q, want %q", got, "okx.swap.linear")
	}
}
