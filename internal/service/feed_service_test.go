package service_test

import (
	"context"
	"testing"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/service"
)

// stubArticleRepository 返回固定的文章列表。
type stubArticleRepository struct {
	articles []model.Article
}

func (s *stubArticleRepository) Create(article *model.Article) error { return nil }

func (s *stubArticleRepository) Upsert(article *model.Article) (bool, error) {
	s.articles = append(s.articles, *article)
	return true, nil
}

func (s *stubArticleRepository) FindAll() ([]model.Article, error) {
	return append([]model.Article{}, s.articles...), nil
}

func (s *stubArticleRepository) Count() (int64, error) {
	return int64(len(s.articles)), nil
}

func newFeedFixture(t *testing.T, articles []model.Article) service.FeedService {
	t.Helper()
	svc, err := service.NewFeedService(&stubArticleRepository{articles: articles}, nil, 0)
	if err != nil {
		t.Fatalf("NewFeedService failed: %v", err)
	}
	return svc
}

func sampleArticles() []model.Article {
	return []model.Article{
		{ID: 1, CategoryName: "Economy", Title: "Infrastructure Bill Vote Analysis"},
		{ID: 2, CategoryName: "Healthcare", Title: "Clinic Hours Extended"},
		{ID: 3, CategoryName: "economy ", Title: "Budget Hearing Recap"},
	}
}

func TestPersonalizedFeedFiltersByDeclaredTopics(t *testing.T) {
	svc := newFeedFixture(t, sampleArticles())
	user := &model.User{ID: 7, Topics: "Economy"}

	result, err := svc.PersonalizedFeed(context.Background(), user, "")
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 economy items, got %d", len(result.Items))
	}
	// 库中顺序保持不变，分类名比较不区分大小写和首尾空白
	if result.Items[0].Article.ID != 1 || result.Items[1].Article.ID != 3 {
		t.Fatalf("unexpected item order: %d, %d", result.Items[0].Article.ID, result.Items[1].Article.ID)
	}
	// 展示名取首见写法
	for _, item := range result.Items {
		if item.CategoryName != "Economy" {
			t.Errorf("expected first-seen display name, got %q", item.CategoryName)
		}
	}
	if result.Items[0].Slug != "economy-infrastructure-bill-vote-analysis" {
		t.Errorf("unexpected slug: %q", result.Items[0].Slug)
	}
	if result.SelectedTopic != service.AllTopicsFilter {
		t.Errorf("default sub-filter should be %q, got %q", service.AllTopicsFilter, result.SelectedTopic)
	}
}

func TestPersonalizedFeedEmptyTopicsYieldsEmptyFeed(t *testing.T) {
	svc := newFeedFixture(t, sampleArticles())
	user := &model.User{ID: 7, Topics: ""}

	result, err := svc.PersonalizedFeed(context.Background(), user, "")
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("user without topics must get an empty feed, got %d items", len(result.Items))
	}
}

func TestPersonalizedFeedTopicSubFilter(t *testing.T) {
	svc := newFeedFixture(t, sampleArticles())
	user := &model.User{ID: 7, Topics: "Economy, Healthcare"}

	// "All" 是恒等过滤
	all, err := svc.PersonalizedFeed(context.Background(), user, service.AllTopicsFilter)
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}
	if len(all.Items) != 3 {
		t.Fatalf("expected all 3 items under %q, got %d", service.AllTopicsFilter, len(all.Items))
	}

	// 单议题子过滤
	healthcare, err := svc.PersonalizedFeed(context.Background(), user, "Healthcare")
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}
	if len(healthcare.Items) != 1 || healthcare.Items[0].Article.ID != 2 {
		t.Fatalf("unexpected sub-filter result: %+v", healthcare.Items)
	}
	if healthcare.SelectedTopic != "Healthcare" {
		t.Errorf("selected topic should be echoed back, got %q", healthcare.SelectedTopic)
	}
}

func TestPersonalizedFeedStaleSelectionResetsToAll(t *testing.T) {
	svc := newFeedFixture(t, sampleArticles())
	user := &model.User{ID: 7, Topics: "Economy"}

	// 选中的议题已不在用户的议题里（偏好刚改过）
	result, err := svc.PersonalizedFeed(context.Background(), user, "Healthcare")
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}
	if result.SelectedTopic != service.AllTopicsFilter {
		t.Fatalf("stale selection must reset to %q, got %q", service.AllTopicsFilter, result.SelectedTopic)
	}
	if len(result.Items) != 2 {
		t.Fatalf("reset selection should show the full personalized feed, got %d items", len(result.Items))
	}
}

func TestPersonalizedFeedTopicMatchingIsCaseInsensitive(t *testing.T) {
	svc := newFeedFixture(t, sampleArticles())
	user := &model.User{ID: 7, Topics: "  eCoNoMy  "}

	result, err := svc.PersonalizedFeed(context.Background(), user, "")
	if err != nil {
		t.Fatalf("PersonalizedFeed failed: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("topic matching must ignore case and whitespace, got %d items", len(result.Items))
	}
}

func TestRefreshPicksUpNewArticles(t *testing.T) {
	repo := &stubArticleRepository{articles: sampleArticles()}
	svc, err := service.NewFeedService(repo, nil, 0)
	if err != nil {
		t.Fatalf("NewFeedService failed: %v", err)
	}
	user := &model.User{ID: 7, Topics: "Education"}

	before, _ := svc.PersonalizedFeed(context.Background(), user, "")
	if len(before.Items) != 0 {
		t.Fatalf("no education articles yet, got %d", len(before.Items))
	}

	repo.articles = append(repo.articles, model.Article{ID: 4, CategoryName: "Education", Title: "School Board Election"})
	if err := svc.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	after, _ := svc.PersonalizedFeed(context.Background(), user, "")
	if len(after.Items) != 1 || after.Items[0].Article.ID != 4 {
		t.Fatalf("refreshed snapshot should include the new article: %+v", after.Items)
	}
}
