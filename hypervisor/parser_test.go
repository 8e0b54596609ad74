package hypervisor

import (
	"reflect"
	"testing"
)

func TestTokenizeBasic(t *testing.T) {
	got, err := Tokenize("bridge create br0")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"bridge", "create", "br0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeQuotedPreservesWhitespace(t *testing.T) {
	got, err := Tokenize(`bridge add_nio_tap br0 "my tap 0"`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"bridge", "add_nio_tap", "br0", "my tap 0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeEmptyLine(t *testing.T) {
	got, err := Tokenize("")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no tokens for empty line, got %v", got)
	}
}

func TestTokenizeUnexpectedQuote(t *testing.T) {
	if _, err := Tokenize(`bridge cre"ate br0`); err != ErrUnexpectedQuote {
		t.Fatalf("expected ErrUnexpectedQuote, got %v", err)
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	if _, err := Tokenize(`bridge create "br0`); err != ErrUnterminatedQuote {
		t.Fatalf("expected ErrUnterminatedQuote, got %v", err)
	}
}

func TestTokenizeMultipleSpaces(t *testing.T) {
	got, err := Tokenize("bridge   create    br0")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"bridge", "create", "br0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
