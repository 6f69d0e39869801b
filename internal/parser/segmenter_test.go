package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentEmptyInput(t *testing.T) {
	s := NewTextSegmenter(500, 50)

	assert.Empty(t, s.Segment(""), "空输入应返回空切片")
	assert.Empty(t, s.Segment("   \n\t  "), "纯空白输入应返回空切片")
}

func TestSegmentShortText(t *testing.T) {
	s := NewTextSegmenter(500, 50)

	text := "负责后端服务开发，使用Go和PostgreSQL。"
	chunks := s.Segment(text)

	require.Len(t, chunks, 1, "短文本应只产生一个块")
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, len([]rune(text)), chunks[0].Length)
}

func TestSegmentRespectsChunkSize(t *testing.T) {
	s := NewTextSegmenter(100, 20)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Built scalable microservices in Go. ")
	}
	chunks := s.Segment(sb.String())

	require.Greater(t, len(chunks), 1, "长文本应被切分为多个块")
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Length, 100, "块长度不应超过chunkSize")
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
	}
	// 序号必须连续递增
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSegmentPrefersParagraphBoundaries(t *testing.T) {
	s := NewTextSegmenter(60, 10)

	text := "第一段经历，负责电商订单系统的整体重构，梳理历史债务并拆分出独立的履约服务。\n\n" +
		"第二段经历，主导技术栈升级，引入Go与PostgreSQL替换遗留单体，完善灰度发布流程。\n\n" +
		"第三段经历，推动核心链路性能优化，接口延迟下降明显，支撑大促期间的流量峰值。"
	chunks := s.Segment(text)

	// 全文超过chunkSize，必须按段落边界切开
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, strings.Count(c.Content, "\n\n"), 1)
	}
}

func TestSegmentOverlapCarriesContext(t *testing.T) {
	s := NewTextSegmenter(50, 20)

	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	chunks := s.Segment(text)

	require.Greater(t, len(chunks), 1)
	// 相邻块之间应有内容重叠: 后一块的开头出现在前一块的尾部
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		head := chunks[i].Content
		if len(head) > 8 {
			head = head[:8]
		}
		assert.Contains(t, prev, head, "块%d的开头应与前一块重叠", i)
	}
}

func TestSegmentReconstructsOriginalText(t *testing.T) {
	s := NewTextSegmenter(50, 20)

	words := make([]string, 40)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	text := strings.Join(words, " ")
	chunks := s.Segment(text)
	require.Greater(t, len(chunks), 1)

	// 去掉相邻块之间的重叠后应能无损还原原文
	// (块首尾空白在切分时已被修剪，由重叠余量补回)
	recon := chunks[0].Content
	for i := 1; i < len(chunks); i++ {
		cur := chunks[i].Content
		overlap := 0
		for l := len(cur); l > 0; l-- {
			if l <= len(recon) && strings.HasSuffix(recon, cur[:l]) {
				overlap = l
				break
			}
		}
		recon += cur[overlap:]
	}
	assert.Equal(t, text, recon)
}

func TestSegmentHardSplitWithoutSeparators(t *testing.T) {
	s := NewTextSegmenter(30, 5)

	text := strings.Repeat("x", 100)
	chunks := s.Segment(text)

	require.Greater(t, len(chunks), 1, "无分隔符的超长文本应按字符硬切")
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Length, 30)
	}
}

func TestNewTextSegmenterFallsBackOnInvalidParams(t *testing.T) {
	s := NewTextSegmenter(0, -1)

	assert.Equal(t, DefaultChunkSize, s.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.chunkOverlap)
}
