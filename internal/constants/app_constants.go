package constants

import "time"

const (
	// 匿名上传归属的默认用户标识
	DefaultUserID = "anonymous"

	// 上传限制
	MaxResumeFileSize = 5 * 1024 * 1024 // 5MB

	// 结果缓存默认时长
	ResultCacheDuration = time.Hour
)
