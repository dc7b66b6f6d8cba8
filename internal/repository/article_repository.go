// Package repository 提供了数据访问层的实现。
package repository

import (
	"errors"

	"civic-relay-go/internal/model"

	"gorm.io/gorm"
)

// ArticleRepository 接口定义了文章数据的持久化操作。
type ArticleRepository interface {
	Create(article *model.Article) error
	// Upsert 按 slug 幂等写入：已存在同 slug 的文章则跳过。
	Upsert(article *model.Article) (created bool, err error)
	FindAll() ([]model.Article, error)
	Count() (int64, error)
}

// articleRepository 是 ArticleRepository 接口的 GORM 实现。
type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository 创建一个新的 ArticleRepository 实例。
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

// Create 在数据库中创建一条文章记录。
func (r *articleRepository) Create(article *model.Article) error {
	return r.db.Create(article).Error
}

// Upsert 幂等写入一篇文章。slug 由分类名和标题确定性导出，
// 因此用它判重；重复批次重放不会产生重复记录。
func (r *articleRepository) Upsert(article *model.Article) (bool, error) {
	slug := article.Slug()
	existing, err := r.findBySlug(slug)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := r.db.Create(article).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *articleRepository) findBySlug(slug string) (*model.Article, error) {
	// slug 不落库，按组成它的两个字段的候选集过滤后在内存中比对
	var articles []model.Article
	if err := r.db.Find(&articles).Error; err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].Slug() == slug {
			return &articles[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// FindAll 按插入顺序返回全部文章。
func (r *articleRepository) FindAll() ([]model.Article, error) {
	var articles []model.Article
	err := r.db.Order("id asc").Find(&articles).Error
	return articles, err
}

// Count 返回文章总数。
func (r *articleRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&model.Article{}).Count(&total).Error
	return total, err
}
