package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRoleProfile(t *testing.T) {
	tests := []struct {
		name          string
		jd            string
		wantRole      string
		wantSeniority string
	}{
		{
			name:          "高级后端",
			jd:            "We are hiring a Senior Backend Developer with Go experience.",
			wantRole:      "backend developer",
			wantSeniority: "senior",
		},
		{
			name:          "初级前端",
			jd:            "Junior Frontend position, React required.",
			wantRole:      "frontend developer",
			wantSeniority: "junior",
		},
		{
			name:          "DevOps优先于后端",
			jd:            "DevOps engineer to maintain backend deployment pipelines.",
			wantRole:      "devops engineer",
			wantSeniority: "",
		},
		{
			name:          "技术负责人",
			jd:            "Staff engineer, full stack, leading a team of 8.",
			wantRole:      "fullstack developer",
			wantSeniority: "lead",
		},
		{
			name:          "中文岗位描述",
			jd:            "招聘资深服务端工程师，负责核心交易系统。",
			wantRole:      "backend developer",
			wantSeniority: "senior",
		},
		{
			name:          "无法识别",
			jd:            "Looking for someone great to join us.",
			wantRole:      "",
			wantSeniority: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := DetectRoleProfile(tt.jd)
			assert.Equal(t, tt.wantRole, profile.Role)
			assert.Equal(t, tt.wantSeniority, profile.Seniority)
		})
	}
}
