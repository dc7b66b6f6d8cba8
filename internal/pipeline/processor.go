// Package pipeline 实现了文章批次的入库处理管道。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"civic-relay-go/internal/config"
	"civic-relay-go/internal/model"
	"civic-relay-go/internal/repository"
	"civic-relay-go/internal/service"
	"civic-relay-go/pkg/es"
	"civic-relay-go/pkg/log"
	"civic-relay-go/pkg/storage"
	"civic-relay-go/pkg/tasks"
)

// ArticleBatch 是对象存储中一个文章批次文件的结构。
type ArticleBatch struct {
	Source   string         `json:"source"`
	Articles []BatchArticle `json:"articles"`
}

// BatchArticle 是批次文件中的单篇文章。
type BatchArticle struct {
	CategoryName string   `json:"categoryName"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Body         string   `json:"body"`
	References   []string `json:"references"`
}

// Processor 消费 Kafka 的入库任务：从 MinIO 拉取文章批次，
// 写入 MySQL，索引到 Elasticsearch，最后刷新信息流快照。
type Processor struct {
	articleRepo repository.ArticleRepository
	feedService service.FeedService
	esCfg       config.ElasticsearchConfig
}

// NewProcessor 创建一个新的 Processor。
func NewProcessor(articleRepo repository.ArticleRepository, feedService service.FeedService, esCfg config.ElasticsearchConfig) *Processor {
	return &Processor{
		articleRepo: articleRepo,
		feedService: feedService,
		esCfg:       esCfg,
	}
}

// Process 处理一个文章入库任务。任务可以安全重放：
// 文章按 slug 判重，重复批次不会产生重复记录。
func (p *Processor) Process(ctx context.Context, task tasks.ArticleIngestTask) error {
	// 1. 从对象存储拉取批次文件
	data, err := storage.FetchObject(ctx, task.Bucket, task.ObjectName)
	if err != nil {
		return fmt.Errorf("failed to fetch batch object: %w", err)
	}

	var batch ArticleBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("failed to parse article batch '%s': %w", task.ObjectName, err)
	}
	log.Infof("批次 %s 包含 %d 篇文章 (source=%s)", task.BatchID, len(batch.Articles), batch.Source)

	// 2. 逐篇入库并索引
	createdCount := 0
	for _, item := range batch.Articles {
		if item.CategoryName == "" || item.Title == "" {
			log.Warnf("跳过缺少分类或标题的文章: batch=%s title='%s'", task.BatchID, item.Title)
			continue
		}
		article := model.Article{
			CategoryName: item.CategoryName,
			Title:        item.Title,
			Summary:      item.Summary,
			Body:         item.Body,
			References:   model.JoinReferences(item.References),
		}
		created, err := p.articleRepo.Upsert(&article)
		if err != nil {
			return fmt.Errorf("failed to upsert article '%s': %w", article.Slug(), err)
		}
		if !created {
			continue
		}
		createdCount++

		if err := es.IndexArticle(ctx, p.esCfg.IndexName, article); err != nil {
			// 索引失败不中断入库，文章仍可通过信息流访问
			log.Errorf("索引文章失败: slug=%s, error: %v", article.Slug(), err)
		}
	}

	// 3. 有新文章时刷新信息流快照
	if createdCount > 0 {
		if err := p.feedService.Refresh(); err != nil {
			return fmt.Errorf("failed to refresh feed snapshot: %w", err)
		}
	}

	log.Infof("批次 %s 入库完成: 新增 %d 篇", task.BatchID, createdCount)
	return nil
}
