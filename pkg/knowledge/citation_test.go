package knowledge_test

import (
	"testing"

	"civic-relay-go/pkg/knowledge"
)

func TestExtractCitationURLProbeOrder(t *testing.T) {
	doc := knowledge.Document{Metadata: map[string]any{
		"source":     "https://late.example",
		"url":        "  https://first.example  ",
		"source_url": "https://second.example",
	}}

	url, ok := knowledge.ExtractCitationURL(doc)
	if !ok {
		t.Fatalf("expected a citation URL")
	}
	if url != "https://first.example" {
		t.Fatalf("probe order violated: got %q", url)
	}
}

func TestExtractCitationURLFallsThroughEmptyKeys(t *testing.T) {
	doc := knowledge.Document{Metadata: map[string]any{
		"url":        "   ",
		"source_url": 42,
		"sourceUrl":  nil,
		"source":     "council journal, vol. 3",
	}}

	url, ok := knowledge.ExtractCitationURL(doc)
	if !ok || url != "council journal, vol. 3" {
		t.Fatalf("expected fallback to 'source', got %q (ok=%v)", url, ok)
	}
}

func TestExtractCitationURLFileNameMustBeHTTP(t *testing.T) {
	plain := knowledge.Document{Metadata: map[string]any{"file_name": "transcript.pdf"}}
	if _, ok := knowledge.ExtractCitationURL(plain); ok {
		t.Fatalf("bare file name must not become a citation")
	}

	hosted := knowledge.Document{Metadata: map[string]any{"fileName": "https://cdn.example/transcript.pdf"}}
	url, ok := knowledge.ExtractCitationURL(hosted)
	if !ok || url != "https://cdn.example/transcript.pdf" {
		t.Fatalf("http file name should be accepted, got %q (ok=%v)", url, ok)
	}
}

func TestExtractCitationURLIsTotal(t *testing.T) {
	// 各种畸形元数据都只应该安静地产出"无结果"
	docs := []knowledge.Document{
		{},
		{Metadata: nil},
		{Metadata: map[string]any{}},
		{Metadata: map[string]any{"url": []any{"https://a.example"}}},
		{Metadata: map[string]any{"url": 3.14}},
		{Metadata: map[string]any{"url": map[string]any{"nested": true}}},
		{Metadata: map[string]any{"unrelated": "value"}},
	}
	for i, doc := range docs {
		if url, ok := knowledge.ExtractCitationURL(doc); ok {
			t.Errorf("docs[%d]: expected no citation, got %q", i, url)
		}
	}
}

func TestExtractCitationsKeepsDocumentOrder(t *testing.T) {
	docs := []knowledge.Document{
		{Metadata: map[string]any{"url": "https://a.example"}},
		{Metadata: map[string]any{"note": "no link here"}},
		{Metadata: map[string]any{"source_url": "https://b.example"}},
	}
	got := knowledge.ExtractCitations(docs)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected citations: %v", got)
	}
}

func TestCitationLabel(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/x":      "example.com",
		"https://nasa.gov/a":             "nasa.gov",
		"http://www.city.gov/minutes":    "city.gov",
		"not a url":                      "not a url",
		"council journal, vol. 3":        "council journal, vol. 3",
		"https://sub.www.example.org/":   "sub.www.example.org",
	}
	for input, want := range cases {
		if got := knowledge.CitationLabel(input); got != want {
			t.Errorf("CitationLabel(%q) = %q, want %q", input, got, want)
		}
	}
}
