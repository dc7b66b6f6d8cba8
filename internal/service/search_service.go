// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"civic-relay-go/internal/model"
	"civic-relay-go/pkg/es"
	"civic-relay-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// ArticleSearchResult 定义了返回给前端的文章搜索结果结构。
type ArticleSearchResult struct {
	ArticleID    uint    `json:"articleId"`
	CategoryName string  `json:"categoryName"`
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	Slug         string  `json:"slug"`
	Score        float64 `json:"score"`
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	// SearchArticles 在用户声明的议题范围内做关键词搜索。
	// 用户没有声明议题时结果为空，与信息流的空议题策略一致。
	SearchArticles(ctx context.Context, query string, topK int, user *model.User) ([]ArticleSearchResult, error)
}

type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{esClient: esClient, indexName: indexName}
}

// SearchArticles 执行文章关键词搜索。
func (s *searchService) SearchArticles(ctx context.Context, query string, topK int, user *model.User) ([]ArticleSearchResult, error) {
	topics := user.TopicList()
	if len(topics) == 0 {
		return []ArticleSearchResult{}, nil
	}
	if topK <= 0 {
		topK = 10
	}

	// 分类名在索引里保留了原始写法，用规范化议题做 terms 过滤前
	// 先收集用户议题的两种写法（原始 + 规范化），兼容历史数据
	filterTopics := make([]string, 0, len(topics)*2)
	for _, t := range topics {
		filterTopics = append(filterTopics, t, model.NormalizeTopic(t))
	}

	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^3", "summary^2", "body"},
					},
				},
				"filter": map[string]interface{}{
					"terms": map[string]interface{}{
						"category_name": filterTopics,
					},
				},
			},
		},
		"size": topK,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	// 解析结果
	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64            `json:"_score"`
				Source es.ArticleDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]ArticleSearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, ArticleSearchResult{
			ArticleID:    hit.Source.ArticleID,
			CategoryName: hit.Source.CategoryName,
			Title:        hit.Source.Title,
			Summary:      hit.Source.Summary,
			Slug:         hit.Source.Slug,
			Score:        hit.Score,
		})
	}
	return results, nil
}
