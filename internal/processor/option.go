package processor

import (
	"io"
	"log"
	"time"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithStore 设置向量/业务数据存储
func WithStore(store VectorStore) ComponentOpt {
	return func(c *Components) {
		c.Store = store
	}
}

// WithDedupCache 设置文本去重缓存
func WithDedupCache(cache DedupCache) ComponentOpt {
	return func(c *Components) {
		c.Dedup = cache
	}
}

// WithSegmenter 设置文本分块器
func WithSegmenter(seg Segmenter) ComponentOpt {
	return func(c *Components) {
		c.Segmenter = seg
	}
}

// WithEmbedder 设置文本向量化组件
func WithEmbedder(embedder TextEmbedder) ComponentOpt {
	return func(c *Components) {
		c.Embedder = embedder
	}
}

// WithGapAnalyzer 设置差距分析器
func WithGapAnalyzer(analyzer GapAnalyzer) ComponentOpt {
	return func(c *Components) {
		c.Gap = analyzer
	}
}

// WithKeywordExtractor 设置关键词提取器
func WithKeywordExtractor(extractor KeywordExtractor) ComponentOpt {
	return func(c *Components) {
		c.Keywords = extractor
	}
}

// WithContentGenerator 设置内容生成器
func WithContentGenerator(generator ContentGenerator) ComponentOpt {
	return func(c *Components) {
		c.Generator = generator
	}
}

// WithCoverLetterGenerator 设置求职信生成器
func WithCoverLetterGenerator(generator CoverLetterGenerator) ComponentOpt {
	return func(c *Components) {
		c.CoverLetter = generator
	}
}

// WithNewsFetcher 设置公司新闻抓取器
func WithNewsFetcher(fetcher NewsFetcher) ComponentOpt {
	return func(c *Components) {
		c.News = fetcher
	}
}

// ----- 设置选项 -----

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			s.Logger = log.New(io.Discard, "", 0)
		}
	}
}

// WithPipelineTimeout 设置整条流水线的超时
func WithPipelineTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.PipelineTimeout = d
		}
	}
}

// WithLLMCallTimeout 设置单次LLM调用的超时
func WithLLMCallTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.LLMCallTimeout = d
		}
	}
}

// WithMarketContext 设置是否将市场上下文注入生成提示词
func WithMarketContext(enabled bool) SettingOpt {
	return func(s *Settings) {
		s.IncludeMarketContext = enabled
	}
}

// WithRetrievalTopK 设置召回数量
func WithRetrievalTopK(resumeTopK, knowledgeTopK int) SettingOpt {
	return func(s *Settings) {
		if resumeTopK > 0 {
			s.ResumeTopK = resumeTopK
		}
		if knowledgeTopK > 0 {
			s.KnowledgeTopK = knowledgeTopK
		}
	}
}

// WithOptimizationEvent 设置优化完成事件的发件箱路由
func WithOptimizationEvent(exchange, routingKey string) SettingOpt {
	return func(s *Settings) {
		s.OptimizationExchange = exchange
		s.OptimizationRoutingKey = routingKey
	}
}

// WithDefaultModel 设置结果中记录的默认模型名
func WithDefaultModel(model string) SettingOpt {
	return func(s *Settings) {
		s.DefaultModel = model
	}
}
