// Package tasks 定义了在消息队列中流转的任务结构。
package tasks

// ArticleIngestTask 描述一批待入库的文章：抓取管道把文章批次
// 写入对象存储后，通过 Kafka 投递这个任务触发入库。
type ArticleIngestTask struct {
	BatchID    string `json:"batch_id"`
	Bucket     string `json:"bucket"`
	ObjectName string `json:"object_name"`
	Source     string `json:"source"` // 抓取来源标识，例如 "council-journals"
}
