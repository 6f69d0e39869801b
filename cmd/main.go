package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumate-go/internal/api/handler"
	"resumate-go/internal/api/router"
	"resumate-go/internal/config"
	"resumate-go/internal/outbox"
	"resumate-go/internal/parser"
	"resumate-go/internal/processor"
	"resumate-go/internal/storage"
	"resumate-go/internal/tracing"
	"resumate-go/pkg/agent"
	"resumate-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"

	appCoreLogger "resumate-go/internal/logger"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, tracing.InitOptions{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				glog.Warnf("刷新链路追踪数据失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 发件箱消息中继
	var messageRelay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags)
		messageRelay = outbox.NewMessageRelay(storageManager.Postgres.DB(), storageManager.RabbitMQ, relayLogger)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("RabbitMQ未初始化，发件箱中继与知识消费者不可用")
	}

	// 向量化组件
	embedder, err := parser.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
	if err != nil {
		glog.Fatalf("初始化Embedder失败: %v", err)
	}

	// LLM聊天模型，按配置套接QPM限流
	baseModel, err := agent.NewOpenRouterChatModel(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, cfg.OpenRouter.APIURL)
	if err != nil {
		glog.Fatalf("初始化LLM模型失败: %v", err)
	}
	llmForTask := func(task string) model.ToolCallingChatModel {
		m := baseModel.WithModel(cfg.GetModelForTask(task))
		return ratelimit.NewLLMWithRateLimit(m, cfg.GetModelForTask(task), cfg.ModelQPMLimits,
			cfg.Pipeline.QPM, cfg.Pipeline.MaxRetries, time.Duration(cfg.Pipeline.RetryWaitSeconds)*time.Second)
	}

	// PDF提取器
	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx,
		parser.WithEinoLogger(componentLogger(cfg, "[PDFExtractor] ")))
	if err != nil {
		glog.Fatalf("创建PDF提取器失败: %v", err)
	}

	segmenter := parser.NewTextSegmenter(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	gapAnalyzer := parser.NewLLMGapAnalyzer(llmForTask("gap_analysis"), componentLogger(cfg, "[GapAnalyzer] "))
	keywordExtractor := parser.NewLLMKeywordExtractor(llmForTask("keyword_extraction"), componentLogger(cfg, "[Keywords] "))
	contentGenerator := parser.NewLLMContentGenerator(llmForTask("content_generation"), componentLogger(cfg, "[Generator] "))
	coverLetterGen := parser.NewLLMCoverLetterGenerator(llmForTask("cover_letter"), componentLogger(cfg, "[CoverLetter] "))
	newsFetcher := parser.NewNewsFetcher(
		config.GetDuration(cfg.CoverLetter.NewsTimeout, 10*time.Second),
		cfg.CoverLetter.MaxNewsItems,
	)

	compOpts := []processor.ComponentOpt{
		processor.WithStore(storageManager.Postgres),
		processor.WithSegmenter(segmenter),
		processor.WithEmbedder(embedder),
		processor.WithGapAnalyzer(gapAnalyzer),
		processor.WithKeywordExtractor(keywordExtractor),
		processor.WithContentGenerator(contentGenerator),
		processor.WithCoverLetterGenerator(coverLetterGen),
		processor.WithNewsFetcher(newsFetcher),
	}
	if storageManager.Redis != nil {
		compOpts = append(compOpts, processor.WithDedupCache(storageManager.Redis))
	}

	setOpts := []processor.SettingOpt{
		processor.WithLogger(log.New(appCoreLogger.Logger, "[Optimizer] ", log.LstdFlags)),
		processor.WithPipelineTimeout(config.GetDuration(cfg.Pipeline.PipelineTimeout, 120*time.Second)),
		processor.WithLLMCallTimeout(config.GetDuration(cfg.Pipeline.LLMCallTimeout, 45*time.Second)),
		processor.WithMarketContext(cfg.Pipeline.IncludeMarketContext),
		processor.WithRetrievalTopK(cfg.Pipeline.ResumeTopK, cfg.Pipeline.KnowledgeTopK),
		processor.WithDefaultModel(cfg.OpenRouter.Model),
	}
	if storageManager.RabbitMQ != nil {
		setOpts = append(setOpts, processor.WithOptimizationEvent(
			cfg.RabbitMQ.OptimizationExchange, cfg.RabbitMQ.OptimizationRoutingKey))
	}

	optimizer, err := processor.NewOptimizer(compOpts, setOpts)
	if err != nil {
		glog.Fatalf("初始化优化器失败: %v", err)
	}
	glog.Info("优化流水线初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, storageManager, optimizer, pdfExtractor)
	knowledgeHandler := handler.NewKnowledgeHandler(cfg, storageManager, embedder)

	// 知识摄取消费者
	if storageManager.RabbitMQ != nil {
		if err := knowledgeHandler.StartKnowledgeConsumer(ctx); err != nil {
			glog.Fatalf("启动知识摄取消费者失败: %v", err)
		}
		glog.Infof("知识摄取消费者已启动，队列: %s", cfg.RabbitMQ.KnowledgeQueue)
	}

	// HTTP服务器，接入hertz的otel中间件
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, resumeHandler, knowledgeHandler, cfg.Pipeline.QPM)
	glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并桥接到hertz的hlog
func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	appCoreLogger.Logger = appCoreLogger.Logger.With().
		Str("app", "resumate").
		Logger()

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
}

// componentLogger debug级别时输出组件日志，否则丢弃
func componentLogger(cfg *config.Config, prefix string) *log.Logger {
	if cfg.Logger.Level == "debug" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}
