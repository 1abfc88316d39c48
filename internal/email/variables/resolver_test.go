package variables

import (
	"testing"

	"github.com/haneul-labs/crm-delivery/pkg/errors"
)

func mustParse(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func TestResolveDocumentWinsOverDefault(t *testing.T) {
	vars := New("title:Hello", "name")
	doc := mustParse(t, `{"name": "Ann"}`)

	if _, value := Resolve("title", doc, vars); value != "Hello" {
		t.Fatalf("expected inline default Hello, got %q", value)
	}
	if _, value := Resolve("name", doc, vars); value != "Ann" {
		t.Fatalf("expected document value Ann, got %q", value)
	}
}

func TestResolveMissingKeyFallsBackToDefault(t *testing.T) {
	vars := New("missing:Default")
	doc := mustParse(t, `{}`)

	if _, value := Resolve("missing", doc, vars); value != "Default" {
		t.Fatalf("expected Default, got %q", value)
	}
}

func TestResolveMissingKeyWithoutDefaultIsEmpty(t *testing.T) {
	vars := New("ghost")
	doc := mustParse(t, `{"name": "Ann"}`)

	if _, value := Resolve("ghost", doc, vars); value != "" {
		t.Fatalf("expected empty string, got %q", value)
	}
}

func TestResolveAttributePrefixReadsTopLevel(t *testing.T) {
	vars := New("attribute_email")
	doc := mustParse(t, `{"email": "ann@example.com"}`)

	if _, value := Resolve("attribute_email", doc, vars); value != "ann@example.com" {
		t.Fatalf("expected document email, got %q", value)
	}
}

func TestResolveCustomPrefixWalksNestedPath(t *testing.T) {
	doc := mustParse(t, `{"loyalty": {"tier": "gold"}}`)

	if _, value := Resolve("custom_loyalty_tier", doc, New()); value != "gold" {
		t.Fatalf("expected nested lookup gold, got %q", value)
	}
}

func TestResolveCustomPrefixHandlesStringifiedIntermediate(t *testing.T) {
	doc := mustParse(t, `{"loyalty": "{\"tier\": \"silver\"}"}`)

	if _, value := Resolve("custom_loyalty_tier", doc, New()); value != "silver" {
		t.Fatalf("expected stringified intermediate to resolve, got %q", value)
	}
}

func TestResolveAllKeepsDuplicateDeclarationsIndependent(t *testing.T) {
	vars := New("title:Hello", "name", "missing:Default")
	doc := mustParse(t, `{"name": "Ann"}`)

	resolved := ResolveAll(vars, doc)
	want := map[string]string{"title": "Hello", "name": "Ann", "missing": "Default"}
	for key, expected := range want {
		if resolved[key] != expected {
			t.Errorf("key %s: expected %q got %q", key, expected, resolved[key])
		}
	}
}

func TestParseDocumentRejectsMalformedJSON(t *testing.T) {
	_, err := ParseDocument(`{"name": `)
	if err == nil {
		t.Fatal("expected format error")
	}
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeFormat {
		t.Fatalf("expected format code, got %v", err)
	}
}

func TestParseDocumentAcceptsEmpty(t *testing.T) {
	doc, err := ParseDocument("")
	if err != nil {
		t.Fatalf("empty document should parse: %v", err)
	}
	if _, ok := doc.Get("anything"); ok {
		t.Fatal("empty document should have no keys")
	}
}

func TestDocumentStringifiesNumbers(t *testing.T) {
	doc := mustParse(t, `{"age": 41, "score": 12.5}`)

	if value, _ := doc.Get("age"); value != "41" {
		t.Fatalf("expected 41, got %q", value)
	}
	if value, _ := doc.Get("score"); value != "12.5" {
		t.Fatalf("expected 12.5, got %q", value)
	}
}

func TestIsNumeric(t *testing.T) {
	for value, want := range map[string]bool{
		"42":    true,
		"-7":    true,
		"3.14":  true,
		"-0.5":  true,
		"abc":   false,
		"1.2.3": false,
		"":      false,
	} {
		if got := IsNumeric(value); got != want {
			t.Errorf("IsNumeric(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestVariablesKeysAndFind(t *testing.T) {
	vars := New("title:Hello", "name")

	withDefaults := vars.Keys(true)
	if len(withDefaults) != 2 || withDefaults[0] != "title:Hello" {
		t.Fatalf("unexpected keys %v", withDefaults)
	}
	bare := vars.Keys(false)
	if bare[0] != "title" || bare[1] != "name" {
		t.Fatalf("unexpected bare keys %v", bare)
	}

	if found, ok := vars.Find("title", true); !ok || found != "title:Hello" {
		t.Fatalf("unexpected find result %q %v", found, ok)
	}
	if found, ok := vars.Find("title", false); !ok || found != "title" {
		t.Fatalf("unexpected find result %q %v", found, ok)
	}
	if _, ok := vars.Find("absent", true); ok {
		t.Fatal("absent key should not be found")
	}
}
