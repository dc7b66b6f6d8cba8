// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"
	"time"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/repository"
	"civic-relay-go/pkg/log"
)

// AllTopicsFilter 是信息流子过滤器的恒等值。
const AllTopicsFilter = "All"

// FeedItem 是信息流中一条可展示的文章条目。
type FeedItem struct {
	Article      model.Article `json:"article"`
	CategoryName string        `json:"categoryName"`
	Slug         string        `json:"slug"`
}

// FeedResult 是一次信息流查询的完整结果。
type FeedResult struct {
	Items []FeedItem `json:"items"`
	// SelectedTopic 是本次实际生效的子过滤器。请求中选中的议题
	// 如果已不在用户声明的议题中，会被重置为 "All"。
	SelectedTopic string `json:"selectedTopic"`
}

// FeedService 定义了个性化信息流的接口。
type FeedService interface {
	// PersonalizedFeed 根据用户声明的议题过滤文章，selectedTopic 为可选的单议题子过滤。
	PersonalizedFeed(ctx context.Context, user *model.User, selectedTopic string) (FeedResult, error)
	// Refresh 重新从文章库加载快照（文章入库后调用）。
	Refresh() error
}

type feedService struct {
	articleRepo repository.ArticleRepository
	feedCache   repository.FeedCacheRepository
	cacheTTL    time.Duration

	mu       sync.RWMutex
	articles []model.Article // 启动时加载的只读快照
}

// NewFeedService 创建一个新的 FeedService 并加载文章快照。
// feedCache 可以为 nil，此时不做缓存（过滤本身是纯函数，缓存只是优化）。
func NewFeedService(articleRepo repository.ArticleRepository, feedCache repository.FeedCacheRepository, cacheTTL time.Duration) (FeedService, error) {
	s := &feedService{
		articleRepo: articleRepo,
		feedCache:   feedCache,
		cacheTTL:    cacheTTL,
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh 从数据库重新加载文章快照。
func (s *feedService) Refresh() error {
	articles, err := s.articleRepo.FindAll()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.articles = articles
	s.mu.Unlock()
	log.Infof("文章快照已加载: %d 篇", len(articles))
	return nil
}

// categoryGroup 是按规范化分类名聚合的一组文章。
type categoryGroup struct {
	displayName string // 首次出现的原始写法
	items       []model.Article
}

// PersonalizedFeed 计算用户的个性化信息流。
//
// 规则：文章按分类分组（比较用规范化名，展示保留首见写法）；用户没有声明
// 任何议题时信息流为空——这是刻意的产品决策（无议题即无信息流），不是缺陷；
// 否则保留分类名命中议题集合的分组，按文章在库中的顺序拍平。
func (s *feedService) PersonalizedFeed(ctx context.Context, user *model.User, selectedTopic string) (FeedResult, error) {
	topics := user.TopicList()
	selected := s.normalizeSelection(topics, selectedTopic)

	if len(topics) == 0 {
		return FeedResult{Items: []FeedItem{}, SelectedTopic: AllTopicsFilter}, nil
	}

	if s.feedCache != nil {
		var cached []FeedItem
		hit, err := s.feedCache.Get(ctx, user.ID, topics, &cached)
		if err != nil {
			// 缓存故障只降级为现算，不影响结果
			log.Warnf("读取信息流缓存失败: %v", err)
		} else if hit {
			return FeedResult{Items: applyTopicFilter(cached, selected), SelectedTopic: selected}, nil
		}
	}

	items := s.computeFeed(topics)

	if s.feedCache != nil {
		if err := s.feedCache.Set(ctx, user.ID, topics, items, s.cacheTTL); err != nil {
			log.Warnf("写入信息流缓存失败: %v", err)
		}
	}

	return FeedResult{Items: applyTopicFilter(items, selected), SelectedTopic: selected}, nil
}

// computeFeed 执行实际的分组与过滤。
func (s *feedService) computeFeed(topics []string) []FeedItem {
	s.mu.RLock()
	articles := s.articles
	s.mu.RUnlock()

	// 1. 按规范化分类名分组，首见写法作为展示名
	groupOrder := make([]string, 0)
	groups := make(map[string]*categoryGroup)
	for _, article := range articles {
		key := model.NormalizeTopic(article.CategoryName)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{displayName: article.CategoryName}
			groups[key] = group
			groupOrder = append(groupOrder, key)
		}
		group.items = append(group.items, article)
	}

	// 2. 用户议题的规范化集合
	topicSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		topicSet[model.NormalizeTopic(t)] = struct{}{}
	}

	// 3. 保留命中的分组并拍平，保持入库顺序
	items := make([]FeedItem, 0)
	for _, key := range groupOrder {
		if _, ok := topicSet[key]; !ok {
			continue
		}
		group := groups[key]
		for _, article := range group.items {
			items = append(items, FeedItem{
				Article:      article,
				CategoryName: group.displayName,
				Slug:         article.Slug(),
			})
		}
	}
	return items
}

// normalizeSelection 校验子过滤器的选中议题：
// 选中的议题已不在用户声明的议题中时（例如偏好刚被修改），重置为 "All"。
func (s *feedService) normalizeSelection(topics []string, selectedTopic string) string {
	if selectedTopic == "" || selectedTopic == AllTopicsFilter {
		return AllTopicsFilter
	}
	normalized := model.NormalizeTopic(selectedTopic)
	for _, t := range topics {
		if model.NormalizeTopic(t) == normalized {
			return selectedTopic
		}
	}
	return AllTopicsFilter
}

// applyTopicFilter 应用单议题子过滤，"All" 为恒等过滤。
func applyTopicFilter(items []FeedItem, selected string) []FeedItem {
	if selected == AllTopicsFilter {
		return items
	}
	normalized := model.NormalizeTopic(selected)
	filtered := make([]FeedItem, 0, len(items))
	for _, item := range items {
		if model.NormalizeTopic(item.CategoryName) == normalized {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
