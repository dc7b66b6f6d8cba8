package model_test

import (
	"testing"

	"civic-relay-go/internal/model"
)

func TestFlattenTextJoinsAndTrims(t *testing.T) {
	msg := model.Message{
		Role: model.RoleAssistant,
		Parts: []model.MessagePart{
			model.TextPart("  first line  "),
			model.CitationPart("https://example.com/a"),
			model.TextPart("second line\n\n   \nthird line  "),
		},
	}

	got := msg.FlattenText()
	want := "first line\nsecond line\nthird line"
	if got != want {
		t.Fatalf("FlattenText() = %q, want %q", got, want)
	}
}

func TestFlattenTextIsIdempotent(t *testing.T) {
	msg := model.Message{
		Role:  model.RoleUser,
		Parts: []model.MessagePart{model.TextPart("  a \n b  \n\n c ")},
	}

	once := msg.FlattenText()
	twice := model.Message{
		Role:  model.RoleUser,
		Parts: []model.MessagePart{model.TextPart(once)},
	}.FlattenText()

	if once != twice {
		t.Fatalf("flattening is not idempotent: %q vs %q", once, twice)
	}
}

func TestFlattenTextIgnoresNonTextParts(t *testing.T) {
	msg := model.Message{
		Role: model.RoleAssistant,
		Parts: []model.MessagePart{
			model.CitationPart("https://example.com/a"),
			{Type: "unknown", Text: "should not appear"},
		},
	}
	if got := msg.FlattenText(); got != "" {
		t.Fatalf("expected empty flatten for citation-only message, got %q", got)
	}
}

func TestPartPredicates(t *testing.T) {
	text := model.TextPart("hello")
	citation := model.CitationPart("https://example.com")
	unknown := model.MessagePart{Type: "blob", Text: "x"}

	if !text.IsText() || text.IsCitation() {
		t.Fatalf("text part misclassified")
	}
	if !citation.IsCitation() || citation.IsText() {
		t.Fatalf("citation part misclassified")
	}
	if unknown.IsText() || unknown.IsCitation() {
		t.Fatalf("unknown part should match neither predicate")
	}
}

func TestNewAssistantMessageOrdersCitationsAfterText(t *testing.T) {
	msg := model.NewAssistantMessage("answer", []string{"https://a.example", "https://b.example"})

	if len(msg.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(msg.Parts))
	}
	if !msg.Parts[0].IsText() {
		t.Fatalf("first part must be the text part")
	}
	if msg.Parts[1].Text != "https://a.example" || msg.Parts[2].Text != "https://b.example" {
		t.Fatalf("citation order not preserved: %+v", msg.Parts)
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := model.NewUserMessage("hi")
		if seen[msg.ID] {
			t.Fatalf("duplicate message id: %s", msg.ID)
		}
		seen[msg.ID] = true
	}
}
