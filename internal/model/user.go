// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"strings"
	"time"
)

// User 代表一个注册用户及其声明的阅读偏好。
// 偏好在会话开始时读取，会话内视为不可变（修改偏好需要开启新会话）。
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Password     string    `gorm:"size:128;not null" json:"-"`
	Role         string    `gorm:"size:16;default:USER" json:"role"`
	Topics       string    `gorm:"size:1024" json:"topics"`       // 逗号分隔的议题列表
	OtherTopics  string    `gorm:"size:512" json:"otherTopics"`   // 自由文本的补充议题
	ReadingLevel int       `gorm:"default:0" json:"readingLevel"` // 1..3，0 表示未设置
	Locations    string    `gorm:"size:1024" json:"locations"`    // 分号分隔的 "City, State" 列表
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// NormalizeTopic 规范化议题名用于比较：去除首尾空白并转为小写。
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

// TopicList 返回用户声明的议题列表，保留原始写法，去掉空项。
func (u User) TopicList() []string {
	topics := make([]string, 0)
	for _, t := range strings.Split(u.Topics, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// Location 代表一个 "City, State" 形式的地区。
type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// LocationList 解析用户的地区偏好。
// 一个地区条目只有在按逗号恰好拆成两个非空部分时才是合法的，非法条目被丢弃。
func (u User) LocationList() []Location {
	locations := make([]Location, 0)
	for _, entry := range strings.Split(u.Locations, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ",")
		if len(parts) != 2 {
			continue
		}
		city := strings.TrimSpace(parts[0])
		state := strings.TrimSpace(parts[1])
		if city == "" || state == "" {
			continue
		}
		locations = append(locations, Location{City: city, State: state})
	}
	return locations
}

// ValidReadingLevel 判断阅读级别是否在允许的 1..3 范围内。
func ValidReadingLevel(level int) bool {
	return level >= 1 && level <= 3
}
