package storage

import "time"

// KnowledgeIngestMessage 知识库入库消息
// 由外部采集器 (或 knowledgeseed 工具) 发布，消费者入库并生成向量。
type KnowledgeIngestMessage struct {
	MessageID string    `json:"message_id"`          // 消息UUID
	Timestamp time.Time `json:"timestamp"`           // 发布时间
	Source    string    `json:"source,omitempty"`    // 采集来源
	Type      string    `json:"type"`                // job_requirements / ats_best_practices / tech_trends
	Content   string    `json:"content"`             // 条目正文
	Role      string    `json:"role,omitempty"`      // 目标角色 (仅job_requirements)
	Seniority string    `json:"seniority,omitempty"` // 资历级别 (仅job_requirements)
	Category  string    `json:"category,omitempty"`  // 分类 (仅tech_trends)
	Confidence int      `json:"confidence,omitempty"` // 置信度，缺省100
}

// OptimizationCompletedEvent 优化完成事件
// 通过事务性发件箱投递，保证与数据库写入的原子性。
type OptimizationCompletedEvent struct {
	OptimizationID string    `json:"optimization_id"` // 优化记录UUID
	ResumeID       string    `json:"resume_id"`       // 简历UUID
	ModelUsed      string    `json:"model_used"`      // 实际使用的模型
	KeywordCount   int       `json:"keyword_count"`   // 提取到的关键词数量
	ProcessingMS   int64     `json:"processing_ms"`   // 流水线耗时(毫秒)
	CompletedAt    time.Time `json:"completed_at"`    // 完成时间
}
