package storage

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

// 距离相同的条目必须有稳定的次序键，否则同一查询的召回结果会抖动
func TestKnowledgeOrderClauseBreaksDistanceTies(t *testing.T) {
	vec := pgvector.NewVector([]float32{0.1, 0.2, 0.3})
	orderBy := knowledgeOrderClause(vec)

	expr, ok := orderBy.Expression.(clause.Expr)
	require.True(t, ok)

	assert.Equal(t, "embedding <=> ?, created_at ASC, id ASC", expr.SQL)
	assert.True(t, expr.WithoutParentheses)
	require.Len(t, expr.Vars, 1)
	assert.Equal(t, vec, expr.Vars[0])
}
