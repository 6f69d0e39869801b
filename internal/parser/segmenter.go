package parser

import (
	"strings"

	"resumate-go/internal/types"
)

const (
	// DefaultChunkSize 默认分块大小(字符数)
	DefaultChunkSize = 500
	// DefaultChunkOverlap 默认相邻分块的重叠字符数
	DefaultChunkOverlap = 50
)

// defaultSeparators 递归切分的分隔符优先级，从段落到句子再到单词
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TextSegmenter 递归字符分块器。
// 按分隔符优先级切分文本，使块尽量落在语义边界上，
// 并通过重叠保持上下文连续。
type TextSegmenter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewTextSegmenter 创建分块器，size/overlap非法时回退默认值
func NewTextSegmenter(chunkSize, chunkOverlap int) *TextSegmenter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 10
		}
	}
	return &TextSegmenter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Segment 将文本切分为带序号的块。空白输入返回空切片。
func (s *TextSegmenter) Segment(text string) []types.TextChunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []types.TextChunk{}
	}

	pieces := s.splitRecursive(trimmed, s.separators)
	merged := s.mergePieces(pieces)

	chunks := make([]types.TextChunk, 0, len(merged))
	for _, content := range merged {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		chunks = append(chunks, types.TextChunk{
			Index:   len(chunks),
			Content: content,
			Length:  len([]rune(content)),
		})
	}
	return chunks
}

// splitRecursive 用第一个命中的分隔符切分，超长片段降级到下一个分隔符
func (s *TextSegmenter) splitRecursive(text string, separators []string) []string {
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}

	// 选择第一个在文本中出现的分隔符
	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			nextSeparators = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		// 最后手段: 按字符硬切
		runes := []rune(text)
		for i := 0; i < len(runes); i += s.chunkSize {
			end := i + s.chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			splits = append(splits, string(runes[i:end]))
		}
		return splits
	}

	// 切分并保留分隔符在片段尾部，避免合并时丢失边界
	parts := strings.Split(text, separator)
	for i, part := range parts {
		if i < len(parts)-1 {
			part += separator
		}
		if part == "" {
			continue
		}
		if runeLen(part) > s.chunkSize {
			splits = append(splits, s.splitRecursive(part, nextSeparators)...)
		} else {
			splits = append(splits, part)
		}
	}
	return splits
}

// mergePieces 将小片段合并为接近chunkSize的块，相邻块保留overlap重叠
func (s *TextSegmenter) mergePieces(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		if currentLen+pieceLen > s.chunkSize && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, ""))

			// 从尾部回收overlap长度的片段作为下一块的开头
			for currentLen > s.chunkOverlap && len(current) > 0 {
				currentLen -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		currentLen += pieceLen
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
