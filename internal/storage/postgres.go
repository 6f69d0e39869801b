package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"resumate-go/internal/config"
	"resumate-go/internal/storage/models"
	"resumate-go/internal/tracing"
	"resumate-go/internal/types"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var pgTracer = otel.Tracer("resumate-go/storage/postgres")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement.RowsAffected > 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		} else {
			span.SetAttributes(attribute.Int64("db.rows_affected", 0))
		}

		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         pgTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// KnowledgeFilter 知识库检索过滤条件，零值字段不参与过滤
type KnowledgeFilter struct {
	Type      types.KnowledgeType
	Role      string // ILIKE %role%
	Seniority string // 精确匹配
}

// Database 关系数据库接口
type Database interface {
	// DB 返回GORM数据库连接实例
	DB() *gorm.DB

	// Close 关闭数据库连接
	Close() error
}

// 确保Postgres实现了Database接口
var _ Database = (*Postgres)(nil)

// Postgres 提供关系存储与pgvector向量检索
type Postgres struct {
	db  *gorm.DB
	cfg *config.PostgresConfig
}

// NewPostgres 创建Postgres客户端并迁移表结构
func NewPostgres(cfg *config.PostgresConfig) (*Postgres, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Postgres配置不能为空")
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Local",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接Postgres失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	p := &Postgres{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	// pgvector扩展必须在建表之前就绪
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("创建pgvector扩展失败: %w", err)
	}

	if err := p.autoMigrateSchema(); err != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到Postgres并自动迁移数据库结构")
	return p, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (p *Postgres) autoMigrateSchema() error {
	currentLogger := p.db.Logger

	// 迁移期间关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := p.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.Resume{},
		&models.ResumeChunk{},
		&models.Optimization{},
		&models.KnowledgeEntry{},
		&models.OutboxMessage{},
	)

	p.db = p.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (p *Postgres) DB() *gorm.DB {
	return p.db
}

// Close 关闭数据库连接
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// IngestResume 在单个事务中写入简历及其全部分块。
// 任何一步失败整体回滚，不留半写入状态。
func (p *Postgres) IngestResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk) error {
	ctx, span := pgTracer.Start(ctx, "Postgres.IngestResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("resume.id", resume.ResumeID),
			attribute.String("resume.user_id", tracing.MaskPII(resume.UserID)),
			attribute.Int("chunk.count", len(chunks)),
		))
	defer span.End()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(resume).Error; err != nil {
			return fmt.Errorf("写入简历记录失败: %w", err)
		}
		if len(chunks) > 0 {
			for i := range chunks {
				chunks[i].ResumeID = resume.ResumeID
			}
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("写入简历分块失败: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SearchResumeChunks 在指定简历范围内做余弦相似检索。
// 相似度 = 1 - 余弦距离，按距离升序排列，距离相同按chunk_index升序保证确定性。
func (p *Postgres) SearchResumeChunks(ctx context.Context, resumeID string, queryVec []float32, topK int) ([]types.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK必须为正数, got %d", topK)
	}
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}

	ctx, span := pgTracer.Start(ctx, "Postgres.SearchResumeChunks",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("resume.id", resumeID),
			attribute.Int("search.top_k", topK),
		))
	defer span.End()

	vec := pgvector.NewVector(queryVec)

	var rows []struct {
		ChunkIndex int
		Content    string
		Similarity float64
	}
	err := p.db.WithContext(ctx).Raw(`
		SELECT chunk_index, content, 1 - (embedding <=> ?) AS similarity
		FROM resume_chunks
		WHERE resume_id = ?
		ORDER BY embedding <=> ?, chunk_index ASC
		LIMIT ?`,
		vec, resumeID, vec, topK,
	).Scan(&rows).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("检索简历分块失败: %w", err)
	}

	results := make([]types.RetrievedChunk, 0, len(rows))
	for _, r := range rows {
		results = append(results, types.RetrievedChunk{
			ChunkIndex: r.ChunkIndex,
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}

	span.SetAttributes(attribute.Int("search.result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// SearchKnowledge 知识库向量检索，支持类型/角色/级别过滤
func (p *Postgres) SearchKnowledge(ctx context.Context, queryVec []float32, filter KnowledgeFilter, topK int) ([]types.KnowledgeEntry, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK必须为正数, got %d", topK)
	}
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}

	ctx, span := pgTracer.Start(ctx, "Postgres.SearchKnowledge",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("knowledge.type", string(filter.Type)),
			attribute.Int("search.top_k", topK),
		))
	defer span.End()

	vec := pgvector.NewVector(queryVec)

	query := p.db.WithContext(ctx).Model(&models.KnowledgeEntry{})
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Role != "" {
		query = query.Where("role ILIKE ?", "%"+filter.Role+"%")
	}
	if filter.Seniority != "" {
		query = query.Where("seniority = ?", filter.Seniority)
	}

	var entries []models.KnowledgeEntry
	err := query.
		Clauses(knowledgeOrderClause(vec)).
		Limit(topK).
		Find(&entries).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("检索知识库失败: %w", err)
	}

	span.SetAttributes(attribute.Int("search.result_count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return toKnowledgeEntries(entries), nil
}

// knowledgeOrderClause 距离升序为主序，距离相同按入库顺序返回，保证检索结果确定性
func knowledgeOrderClause(vec pgvector.Vector) clause.OrderBy {
	return clause.OrderBy{
		Expression: clause.Expr{
			SQL:                "embedding <=> ?, created_at ASC, id ASC",
			Vars:               []interface{}{vec},
			WithoutParentheses: true,
		},
	}
}

// GetATSBestPractices 获取ATS格式化规则，置信度降序前10条
func (p *Postgres) GetATSBestPractices(ctx context.Context) ([]types.KnowledgeEntry, error) {
	ctx, span := pgTracer.Start(ctx, "Postgres.GetATSBestPractices",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var entries []models.KnowledgeEntry
	err := p.db.WithContext(ctx).
		Where("type = ?", string(types.KnowledgeATSBestPractices)).
		Order("confidence DESC").
		Limit(10).
		Find(&entries).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("获取ATS规则失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return toKnowledgeEntries(entries), nil
}

// GetTechTrends 获取近90天的技术趋势，按时间降序前5条。category为空则不过滤。
func (p *Postgres) GetTechTrends(ctx context.Context, category string) ([]types.KnowledgeEntry, error) {
	ctx, span := pgTracer.Start(ctx, "Postgres.GetTechTrends",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("knowledge.category", category)))
	defer span.End()

	query := p.db.WithContext(ctx).
		Where("type = ?", string(types.KnowledgeTechTrends)).
		Where("created_at > ?", time.Now().AddDate(0, 0, -90))
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var entries []models.KnowledgeEntry
	err := query.
		Order("created_at DESC").
		Limit(5).
		Find(&entries).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("获取技术趋势失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return toKnowledgeEntries(entries), nil
}

// SaveOptimization 保存优化记录，并在同一事务内写入outbox事件
func (p *Postgres) SaveOptimization(ctx context.Context, opt *models.Optimization, outboxMsg *models.OutboxMessage) error {
	ctx, span := pgTracer.Start(ctx, "Postgres.SaveOptimization",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("optimization.id", opt.OptimizationID),
			attribute.String("resume.id", opt.ResumeID),
		))
	defer span.End()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(opt).Error; err != nil {
			return fmt.Errorf("写入优化记录失败: %w", err)
		}
		if outboxMsg != nil {
			if err := tx.Create(outboxMsg).Error; err != nil {
				return fmt.Errorf("写入outbox事件失败: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetResumeByID 通过ID获取简历记录
func (p *Postgres) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	err := p.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&resume).Error
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetResumeByTextMD5 通过文本MD5查找已摄取的简历，未找到返回nil
func (p *Postgres) GetResumeByTextMD5(ctx context.Context, textMD5 string) (*models.Resume, error) {
	var resume models.Resume
	err := p.db.WithContext(ctx).Where("text_md5 = ?", textMD5).First(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// CountResumeChunks 统计简历已落库的分块数，幂等摄取判定用
func (p *Postgres) CountResumeChunks(ctx context.Context, resumeID string) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.ResumeChunk{}).Where("resume_id = ?", resumeID).Count(&count).Error
	return count, err
}

// GetOptimizationByID 通过ID获取优化记录
func (p *Postgres) GetOptimizationByID(ctx context.Context, optimizationID string) (*models.Optimization, error) {
	var opt models.Optimization
	err := p.db.WithContext(ctx).Where("optimization_id = ?", optimizationID).First(&opt).Error
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

// ListOptimizationsByResume 列出某简历的全部优化记录，按时间降序
func (p *Postgres) ListOptimizationsByResume(ctx context.Context, resumeID string) ([]models.Optimization, error) {
	var opts []models.Optimization
	err := p.db.WithContext(ctx).Where("resume_id = ?", resumeID).Order("created_at DESC").Find(&opts).Error
	return opts, err
}

// AddKnowledge 新增知识库条目
func (p *Postgres) AddKnowledge(ctx context.Context, entry *models.KnowledgeEntry) error {
	ctx, span := pgTracer.Start(ctx, "Postgres.AddKnowledge",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("knowledge.type", entry.Type)))
	defer span.End()

	if entry.Confidence == 0 {
		entry.Confidence = 100
	}
	err := p.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("写入知识库条目失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// toKnowledgeEntries 数据库模型转领域模型
func toKnowledgeEntries(entries []models.KnowledgeEntry) []types.KnowledgeEntry {
	out := make([]types.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.KnowledgeEntry{
			ID:         e.ID,
			Type:       types.KnowledgeType(e.Type),
			Content:    e.Content,
			Role:       e.Role,
			Seniority:  e.Seniority,
			Category:   e.Category,
			Source:     e.Source,
			Confidence: e.Confidence,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// MarshalGapAnalysis 序列化差距分析结果，供写库使用
func MarshalGapAnalysis(ga *types.GapAnalysis) (string, error) {
	if ga == nil {
		return "{}", nil
	}
	b, err := json.Marshal(ga)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
