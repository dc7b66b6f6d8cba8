// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"strings"
	"time"
	"unicode"
)

// Article 代表一篇按议题分类的资讯文章。文章在入库后不再修改。
type Article struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CategoryName string    `gorm:"size:128;index;not null" json:"categoryName"`
	Title        string    `gorm:"size:512;not null" json:"title"`
	Summary      string    `gorm:"type:text" json:"summary"`
	Body         string    `gorm:"type:text" json:"body"`
	References   string    `gorm:"type:text" json:"-"` // 参考链接，换行分隔存储
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Article) TableName() string {
	return "articles"
}

// ReferenceList 返回文章的参考链接列表。
func (a Article) ReferenceList() []string {
	refs := make([]string, 0)
	for _, line := range strings.Split(a.References, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			refs = append(refs, line)
		}
	}
	return refs
}

// JoinReferences 将参考链接列表序列化为存储格式。
func JoinReferences(refs []string) string {
	kept := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref != "" {
			kept = append(kept, ref)
		}
	}
	return strings.Join(kept, "\n")
}

// Slug 返回文章的可寻址键。slug 不落库，任何需要它的地方都按相同规则重新计算。
func (a Article) Slug() string {
	return CreateArticleSlug(a.CategoryName, a.Title)
}

// CreateArticleSlug 根据分类名和标题确定性地生成 slug：
// 全部小写，非字母数字的连续字符折叠为单个连字符，并去掉首尾的连字符。
func CreateArticleSlug(categoryName, title string) string {
	source := strings.ToLower(categoryName + " " + title)
	var b strings.Builder
	lastHyphen := true // 抑制开头的连字符
	for _, r := range source {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
