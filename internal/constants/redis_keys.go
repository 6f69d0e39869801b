package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"
	// OptimizationModulePrefix 优化模块
	OptimizationModulePrefix = "optimization"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityResult 优化结果实体
	EntityResult = "result"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToID MD5到简历ID的映射实体
	EntityMD5ToID = "md5_to_id"

	// KeyFileMD5Set 原始文件MD5集合，用于快速去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyTextMD5Set 解析文本MD5集合，幂等摄取判定 (SET)
	// 格式: app:resume:dedup_set
	KeyTextMD5Set = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityDedupSet

	// KeyTextMD5ToResumeID 文本MD5到简历ID的映射 (STRING)
	// 格式: app:resume:md5_to_id:{md5}
	KeyTextMD5ToResumeID = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityMD5ToID + ":%s"

	// KeyOptimizationResult 优化结果缓存 (STRING, JSON)
	// 格式: app:optimization:result:{optimizationID}
	KeyOptimizationResult = AppPrefix + ":" + OptimizationModulePrefix + ":" + EntityResult + ":%s"

	// KeyOptimizeLock 同一简历文本+JD并发优化的分布式锁 (STRING)
	// 格式: app:optimization:lock:{textMD5}:{jdMD5}
	KeyOptimizeLock = AppPrefix + ":" + OptimizationModulePrefix + ":" + EntityLock + ":%s:%s"
)
