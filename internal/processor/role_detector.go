package processor

import (
	"strings"

	"resumate-go/internal/types"
)

// roleKeywordTable 角色关键词表，按优先级匹配 (靠前的更具体)
var roleKeywordTable = []struct {
	role     string
	keywords []string
}{
	{"devops engineer", []string{"devops", "sre", "site reliability", "platform engineer"}},
	{"data engineer", []string{"data engineer", "etl", "data pipeline", "数据开发"}},
	{"data scientist", []string{"data scientist", "machine learning", "ml engineer", "算法工程师"}},
	{"fullstack developer", []string{"fullstack", "full-stack", "full stack", "全栈"}},
	{"frontend developer", []string{"frontend", "front-end", "front end", "react", "vue", "前端"}},
	{"backend developer", []string{"backend", "back-end", "back end", "server-side", "后端", "服务端"}},
	{"mobile developer", []string{"android", "ios", "flutter", "react native", "移动端"}},
	{"qa engineer", []string{"qa engineer", "test engineer", "quality assurance", "测试工程师"}},
}

// seniorityKeywordTable 资历关键词表
var seniorityKeywordTable = []struct {
	seniority string
	keywords  []string
}{
	{"lead", []string{"lead", "principal", "staff", "architect", "技术负责人", "架构师"}},
	{"senior", []string{"senior", "sr.", "sr ", "资深", "高级"}},
	{"junior", []string{"junior", "jr.", "jr ", "entry level", "entry-level", "graduate", "intern", "初级", "应届"}},
	{"mid", []string{"mid-level", "mid level", "intermediate", "中级"}},
}

// DetectRoleProfile 用关键词分类器从岗位描述中识别角色和资历。
// 刻意保持简单: 小写子串匹配，识别不出时返回空字段，
// 检索层会据此省略对应过滤条件。
func DetectRoleProfile(jobDescription string) types.RoleProfile {
	lower := strings.ToLower(jobDescription)
	profile := types.RoleProfile{}

	for _, entry := range roleKeywordTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				profile.Role = entry.role
				break
			}
		}
		if profile.Role != "" {
			break
		}
	}

	for _, entry := range seniorityKeywordTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				profile.Seniority = entry.seniority
				break
			}
		}
		if profile.Seniority != "" {
			break
		}
	}

	return profile
}
