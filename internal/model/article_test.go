package model_test

import (
	"testing"

	"civic-relay-go/internal/model"
)

func TestCreateArticleSlug(t *testing.T) {
	cases := []struct {
		category string
		title    string
		want     string
	}{
		{"Economy", "Infrastructure Bill Vote Analysis!", "economy-infrastructure-bill-vote-analysis"},
		{"Healthcare", "Clinic   Hours -- Extended", "healthcare-clinic-hours-extended"},
		{"  Economy  ", "Budget (2026)", "economy-budget-2026"},
		{"A", "", "a"},
	}
	for _, tc := range cases {
		got := model.CreateArticleSlug(tc.category, tc.title)
		if got != tc.want {
			t.Errorf("CreateArticleSlug(%q, %q) = %q, want %q", tc.category, tc.title, got, tc.want)
		}
	}
}

func TestCreateArticleSlugIsDeterministic(t *testing.T) {
	first := model.CreateArticleSlug("Economy", "Infrastructure Bill Vote Analysis!")
	for i := 0; i < 10; i++ {
		again := model.CreateArticleSlug("Economy", "Infrastructure Bill Vote Analysis!")
		if again != first {
			t.Fatalf("slug not deterministic: %q vs %q", first, again)
		}
	}
}

func TestReferenceListRoundTrip(t *testing.T) {
	article := model.Article{
		References: model.JoinReferences([]string{" https://a.example ", "", "https://b.example"}),
	}
	refs := article.ReferenceList()
	if len(refs) != 2 || refs[0] != "https://a.example" || refs[1] != "https://b.example" {
		t.Fatalf("unexpected references: %v", refs)
	}
}
