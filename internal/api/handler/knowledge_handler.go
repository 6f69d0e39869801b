package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resumate-go/internal/config"
	"resumate-go/internal/logger"
	"resumate-go/internal/processor"
	"resumate-go/internal/storage"
	"resumate-go/internal/storage/models"
	"resumate-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeHandler 知识库条目的写入与消费
type KnowledgeHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	embedder processor.TextEmbedder
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(cfg *config.Config, storage *storage.Storage, embedder processor.TextEmbedder) *KnowledgeHandler {
	return &KnowledgeHandler{
		cfg:      cfg,
		storage:  storage,
		embedder: embedder,
	}
}

// KnowledgeAddRequest 知识条目写入请求
type KnowledgeAddRequest struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Role       string `json:"role,omitempty"`
	Seniority  string `json:"seniority,omitempty"`
	Category   string `json:"category,omitempty"`
	Source     string `json:"source,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
}

var validKnowledgeTypes = map[string]bool{
	string(types.KnowledgeJobRequirements):  true,
	string(types.KnowledgeATSBestPractices): true,
	string(types.KnowledgeTechTrends):       true,
}

// HandleAddKnowledge 向知识库写入一条带向量的条目，返回条目ID
func (h *KnowledgeHandler) HandleAddKnowledge(ctx context.Context, req KnowledgeAddRequest) (string, error) {
	if !validKnowledgeTypes[req.Type] {
		return "", fmt.Errorf("不支持的知识类型: %s", req.Type)
	}
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("知识条目内容不能为空")
	}
	if req.Confidence < 0 || req.Confidence > 100 {
		return "", fmt.Errorf("置信度必须在0-100之间: %d", req.Confidence)
	}

	vecs, err := h.embedder.EmbedStrings(ctx, []string{req.Content})
	if err != nil {
		return "", fmt.Errorf("知识条目向量化失败: %w", err)
	}
	if len(vecs) == 0 {
		return "", fmt.Errorf("知识条目向量化返回空结果")
	}

	entryID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成知识条目ID失败: %w", err)
	}

	confidence := req.Confidence
	if confidence == 0 {
		confidence = 100
	}

	entry := &models.KnowledgeEntry{
		ID:         entryID.String(),
		Type:       req.Type,
		Content:    req.Content,
		Embedding:  pgvector.NewVector(toFloat32(vecs[0])),
		Role:       strings.ToLower(req.Role),
		Seniority:  strings.ToLower(req.Seniority),
		Category:   req.Category,
		Source:     req.Source,
		Confidence: confidence,
	}
	if err := h.storage.Postgres.AddKnowledge(ctx, entry); err != nil {
		return "", fmt.Errorf("写入知识库失败: %w", err)
	}

	logger.Info().
		Str("entry_id", entry.ID).
		Str("type", entry.Type).
		Str("role", entry.Role).
		Msg("知识条目已入库")
	return entry.ID, nil
}

// StartKnowledgeConsumer 订阅外部爬虫发布的知识摄取消息。
// 消息格式错误直接丢弃，向量化或入库失败回队重试。
func (h *KnowledgeHandler) StartKnowledgeConsumer(ctx context.Context) error {
	if h.storage.RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ未初始化，无法启动知识消费者")
	}

	mq := h.cfg.RabbitMQ
	if err := h.storage.RabbitMQ.EnsureExchange(mq.KnowledgeExchange, "direct", true); err != nil {
		return fmt.Errorf("确保知识交换机存在失败: %w", err)
	}
	if err := h.storage.RabbitMQ.EnsureQueue(mq.KnowledgeQueue, true); err != nil {
		return fmt.Errorf("确保知识队列存在失败: %w", err)
	}
	if err := h.storage.RabbitMQ.BindQueue(mq.KnowledgeQueue, mq.KnowledgeExchange, mq.KnowledgeRoutingKey); err != nil {
		return fmt.Errorf("绑定知识队列失败: %w", err)
	}

	done, err := h.storage.RabbitMQ.StartConsumer(mq.KnowledgeQueue, mq.PrefetchCount, func(body []byte) bool {
		var msg storage.KnowledgeIngestMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			logger.Error().Err(err).Msg("知识摄取消息格式错误，丢弃")
			return true // 格式错误重试无意义
		}

		if _, err := h.HandleAddKnowledge(ctx, KnowledgeAddRequest{
			Type:       msg.Type,
			Content:    msg.Content,
			Role:       msg.Role,
			Seniority:  msg.Seniority,
			Category:   msg.Category,
			Source:     msg.Source,
			Confidence: msg.Confidence,
		}); err != nil {
			// 校验类错误丢弃，基础设施类错误回队
			if strings.Contains(err.Error(), "不支持的知识类型") || strings.Contains(err.Error(), "内容不能为空") {
				logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("知识摄取消息校验失败，丢弃")
				return true
			}
			logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("知识摄取处理失败，回队重试")
			return false
		}

		logger.Debug().Str("message_id", msg.MessageID).Str("source", msg.Source).Msg("知识摄取消息处理完成")
		return true
	})
	if err != nil {
		return fmt.Errorf("启动知识消费者失败: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			logger.Warn().Str("queue", mq.KnowledgeQueue).Msg("知识消费者已停止")
		}
	}()
	return nil
}

// toFloat32 pgvector存储要求float32
func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
