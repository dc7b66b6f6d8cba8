// Package model 包含了应用的数据模型定义。
package model

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Role 表示一条消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType 区分消息片段的类型。
type PartType string

const (
	PartTypeText     PartType = "text"
	PartTypeCitation PartType = "citation"
)

// MessagePart 是消息内容的最小单元：一段正文或一条引用链接。
type MessagePart struct {
	Type PartType `json:"type"`
	Text string   `json:"text"`
}

// IsText 判断片段是否为正文片段。未知类型一律返回 false，不会报错。
func (p MessagePart) IsText() bool {
	return p.Type == PartTypeText
}

// IsCitation 判断片段是否为引用片段。
func (p MessagePart) IsCitation() bool {
	return p.Type == PartTypeCitation
}

// TextPart 构造一个正文片段。
func TextPart(text string) MessagePart {
	return MessagePart{Type: PartTypeText, Text: text}
}

// CitationPart 构造一个引用片段，Text 为引用的 URL。
func CitationPart(url string) MessagePart {
	return MessagePart{Type: PartTypeCitation, Text: url}
}

// Message 代表会话记录中的一条消息。消息一经创建不再修改，
// 会话记录按插入顺序排列（两条消息可能共享同一时间戳，排序不依赖时间）。
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Parts     []MessagePart `json:"parts"`
	CreatedAt time.Time     `json:"createdAt"`
}

// 消息 ID 使用时间戳加进程内序号生成，避免为此引入额外依赖。
var messageSeq uint64

func nextMessageID(role Role) string {
	seq := atomic.AddUint64(&messageSeq, 1)
	return fmt.Sprintf("%d-%d-%s", time.Now().UnixNano(), seq, role)
}

// NewUserMessage 根据用户输入构造一条用户消息，内容为单个正文片段。
func NewUserMessage(text string) Message {
	return Message{
		ID:        nextMessageID(RoleUser),
		Role:      RoleUser,
		Parts:     []MessagePart{TextPart(text)},
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage 构造一条助手消息：正文片段在前，引用片段按顺序排在其后。
func NewAssistantMessage(text string, citations []string) Message {
	parts := make([]MessagePart, 0, len(citations)+1)
	parts = append(parts, TextPart(text))
	for _, url := range citations {
		parts = append(parts, CitationPart(url))
	}
	return Message{
		ID:        nextMessageID(RoleAssistant),
		Role:      RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
}

// FlattenText 将消息的所有正文片段合并为一个展示用字符串：
// 每行去除首尾空白，空行丢弃，行与行之间以换行符连接，结果再整体去除首尾空白。
// 引用片段和未知类型片段不参与合并。该操作是幂等的。
func (m Message) FlattenText() string {
	var lines []string
	for _, part := range m.Parts {
		if !part.IsText() {
			continue
		}
		for _, line := range strings.Split(part.Text, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			lines = append(lines, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
