package processor

import (
	"fmt"
	"strings"
)

const minResumeTextLength = 200

// resumeSignalWords 判定文本是否像一份简历的特征词
var resumeSignalWords = []string{
	"experience", "education", "skills", "work", "project", "employment",
	"university", "degree", "internship",
	"经历", "经验", "教育", "技能", "工作", "项目", "实习", "学历", "毕业",
}

// ValidateResumeContent 校验提取出的文本确实是简历:
// 长度达标且至少命中两个简历特征词，否则拒绝进入流水线
func ValidateResumeContent(text string) error {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minResumeTextLength {
		return &OptimizeError{
			Stage:   "validate",
			BaseErr: ErrTextTooShort,
			Detail:  fmt.Sprintf("提取文本过短(%d字符)，至少需要%d字符", len([]rune(trimmed)), minResumeTextLength),
		}
	}

	lower := strings.ToLower(trimmed)
	hits := 0
	for _, word := range resumeSignalWords {
		if strings.Contains(lower, word) {
			hits++
			if hits >= 2 {
				return nil
			}
		}
	}
	return &OptimizeError{
		Stage:   "validate",
		BaseErr: ErrNotResumeLike,
		Detail:  "文本缺少简历特征内容",
	}
}
