package models

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Resume 简历主表，保存原始文本与对象存储路径
type Resume struct {
	ResumeID            string    `gorm:"type:char(36);primaryKey"`
	UserID              string    `gorm:"type:varchar(255);not null;default:'anonymous';index:idx_resumes_user_id"`
	OriginalText        string    `gorm:"type:text;not null"`
	FileName            string    `gorm:"type:varchar(255)"`
	FileSize            int64     `gorm:"type:bigint"`
	TextMD5             string    `gorm:"type:char(32);index:idx_resumes_text_md5"`
	OriginalFilePathOSS string    `gorm:"type:varchar(1024)"`
	ParsedTextPathOSS   string    `gorm:"type:varchar(1024)"`
	CreatedAt           time.Time `gorm:"type:timestamptz;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time `gorm:"type:timestamptz;default:CURRENT_TIMESTAMP;autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// ResumeChunk 简历分块表，embedding 依赖 pgvector 扩展
type ResumeChunk struct {
	ChunkDBID  uint64          `gorm:"primaryKey;autoIncrement"`
	ResumeID   string          `gorm:"type:char(36);not null;index:idx_rc_resume_id;uniqueIndex:idx_rc_resume_chunk_index,priority:1"`
	ChunkIndex int             `gorm:"not null;uniqueIndex:idx_rc_resume_chunk_index,priority:2"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(1024)"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;default:CURRENT_TIMESTAMP"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeChunk) TableName() string {
	return "resume_chunks"
}

// Optimization 优化记录表
type Optimization struct {
	OptimizationID   string         `gorm:"type:char(36);primaryKey"`
	ResumeID         string         `gorm:"type:char(36);not null;index:idx_opt_resume_id"`
	JobDescription   string         `gorm:"type:text;not null"`
	OptimizedContent string         `gorm:"type:text;not null"`
	KeywordsJSON     datatypes.JSON `gorm:"type:jsonb"`
	GapAnalysisJSON  datatypes.JSON `gorm:"type:jsonb"`
	ModelUsed        string         `gorm:"type:varchar(100);not null"`
	ProcessingTimeMS int64          `gorm:"type:bigint"`
	CreatedAt        time.Time      `gorm:"type:timestamptz;default:CURRENT_TIMESTAMP;index:idx_opt_created_at"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Optimization) TableName() string {
	return "optimizations"
}

// KnowledgeEntry 知识库条目表
// Type 取值: job_requirements / ats_best_practices / tech_trends
type KnowledgeEntry struct {
	ID         string          `gorm:"type:char(36);primaryKey"`
	Type       string          `gorm:"type:varchar(50);not null;index:idx_kb_type"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(1024)"`
	Role       string          `gorm:"type:varchar(100);index:idx_kb_role"`
	Seniority  string          `gorm:"type:varchar(50);index:idx_kb_seniority"`
	Category   string          `gorm:"type:varchar(100)"`
	Source     string          `gorm:"type:varchar(255)"`
	Confidence int             `gorm:"not null;default:100;index:idx_kb_confidence"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;default:CURRENT_TIMESTAMP;index:idx_kb_created_at"`
}

func (KnowledgeEntry) TableName() string {
	return "knowledge_base"
}

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON Helper function to convert map[string]interface{} to datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// SliceToJSON Helper function to convert []string to datatypes.JSON
func SliceToJSON(s []string) (datatypes.JSON, error) {
	if s == nil {
		s = []string{}
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
