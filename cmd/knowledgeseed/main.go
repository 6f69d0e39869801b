package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"resumate-go/internal/api/handler"
	"resumate-go/internal/config"
	appCoreLogger "resumate-go/internal/logger"
	"resumate-go/internal/parser"
	"resumate-go/internal/storage"

	"github.com/spf13/pflag"
)

// 知识库初始数据，来自人工整理的岗位要求、ATS规则与技术趋势
var seedEntries = []handler.KnowledgeAddRequest{
	// 前端
	{
		Type:       "job_requirements",
		Role:       "frontend developer",
		Seniority:  "junior",
		Category:   "skills",
		Content:    "HTML, CSS, JavaScript, React, Git, REST APIs, responsive design, basic TypeScript, Figma/design tools, debugging with DevTools",
		Source:     "Manual - Indeed/LinkedIn 2024",
		Confidence: 95,
	},
	{
		Type:       "job_requirements",
		Role:       "frontend developer",
		Seniority:  "mid",
		Category:   "skills",
		Content:    "React/Vue/Angular, TypeScript, Next.js, state management (Redux/Zustand), testing (Jest/Vitest), CI/CD basics, performance optimization, Web APIs, accessibility basics",
		Source:     "Manual - 15 job postings",
		Confidence: 95,
	},
	{
		Type:       "job_requirements",
		Role:       "frontend developer",
		Seniority:  "senior",
		Category:   "skills",
		Content:    "Advanced React patterns, architecture decisions, mentoring, system design, A/B testing, Web Vitals, accessibility (WCAG), micro-frontends, SSR/SSG, build optimization",
		Source:     "Manual - Senior roles 2024",
		Confidence: 90,
	},
	// 后端
	{
		Type:       "job_requirements",
		Role:       "backend developer",
		Seniority:  "junior",
		Category:   "skills",
		Content:    "Node.js or Python or Java, SQL basics (PostgreSQL/MySQL), REST APIs, Git, unit testing, basic AWS/GCP, JSON/XML, HTTP protocols, debugging",
		Source:     "Manual - Entry level 2024",
		Confidence: 95,
	},
	{
		Type:       "job_requirements",
		Role:       "backend developer",
		Seniority:  "mid",
		Category:   "skills",
		Content:    "Microservices, PostgreSQL/MongoDB, Redis caching, Docker, Kubernetes basics, API design patterns, authentication (JWT/OAuth), message queues (RabbitMQ/Kafka), logging/monitoring",
		Source:     "Manual - Mid level 2024",
		Confidence: 95,
	},
	{
		Type:       "job_requirements",
		Role:       "backend developer",
		Seniority:  "senior",
		Category:   "skills",
		Content:    "System architecture, scalability patterns, database optimization, event-driven architecture, service mesh, observability (Datadog/Sentry), security best practices, team leadership, code review",
		Source:     "Manual - Senior 2024",
		Confidence: 90,
	},
	// 全栈
	{
		Type:       "job_requirements",
		Role:       "fullstack developer",
		Seniority:  "mid",
		Category:   "skills",
		Content:    "React + Node.js, TypeScript, PostgreSQL, REST/GraphQL APIs, Docker, Git, testing (frontend + backend), deployment (Vercel/Railway), authentication, responsive design",
		Source:     "Manual - Full Stack 2024",
		Confidence: 90,
	},
	// ATS规则
	{
		Type:       "ats_best_practices",
		Category:   "formatting",
		Content:    "Use standard fonts (Arial, Calibri, Times New Roman, Helvetica). Avoid tables, text boxes, headers/footers, and images. Use simple bullet points. Save as .docx or PDF. Avoid columns and complex layouts.",
		Source:     "ATS Guidelines 2024",
		Confidence: 100,
	},
	{
		Type:       "ats_best_practices",
		Category:   "keywords",
		Content:    "Mirror exact keywords from job description. Include both acronyms and full terms (e.g., \"API\" and \"Application Programming Interface\"). Use standard section headers (Experience, Education, Skills, Summary). Match job title exactly if possible.",
		Source:     "ATS Guidelines 2024",
		Confidence: 100,
	},
	{
		Type:       "ats_best_practices",
		Category:   "content",
		Content:    "Start bullet points with action verbs (Developed, Implemented, Led, Optimized). Quantify achievements with specific metrics (%, numbers, timeframes). Keep to 1-2 pages maximum. Avoid graphics, charts, or creative designs. Use standard bullet points, not custom symbols.",
		Source:     "ATS Guidelines 2024",
		Confidence: 100,
	},
	{
		Type:       "ats_best_practices",
		Category:   "structure",
		Content:    "Include contact information at top (email, phone, LinkedIn). List experience in reverse chronological order. Use clear job titles and company names. Include dates in consistent format (MM/YYYY). Add education section with degree, institution, graduation date.",
		Source:     "ATS Best Practices",
		Confidence: 100,
	},
	// 技术趋势
	{
		Type:       "tech_trends",
		Category:   "frontend",
		Content:    "React Server Components, Next.js 15 App Router, Tailwind CSS, shadcn/ui component library, TypeScript mandatory in most roles, AI integration (Vercel AI SDK, LangChain), Bun/Deno as alternative runtimes, Astro for content-heavy sites",
		Source:     "Stack Overflow Survey 2024 + GitHub Trending",
		Confidence: 85,
	},
	{
		Type:       "tech_trends",
		Category:   "backend",
		Content:    "Serverless architecture (Vercel Functions, AWS Lambda), Edge computing, GraphQL adoption, tRPC for end-to-end type-safety, PostgreSQL + Drizzle ORM, AI/LLM API integration, vector databases (pgvector, Pinecone), real-time features (WebSockets, Server-Sent Events)",
		Source:     "Stack Overflow 2024 + RedMonk",
		Confidence: 85,
	},
	{
		Type:       "tech_trends",
		Category:   "devops",
		Content:    "Docker + Kubernetes standard, GitHub Actions for CI/CD pipelines, Terraform/Pulumi for Infrastructure as Code, observability tools (Datadog, Sentry, Grafana), platform engineering mindset, GitOps workflows, security scanning in pipelines",
		Source:     "DevOps Survey 2024",
		Confidence: 80,
	},
	{
		Type:       "tech_trends",
		Category:   "ai_ml",
		Content:    "LLM integration in products, RAG (Retrieval-Augmented Generation) architectures, prompt engineering, vector embeddings for semantic search, OpenAI/Anthropic/Gemini APIs, LangChain/LlamaIndex frameworks, fine-tuning considerations",
		Source:     "AI Trends 2024",
		Confidence: 80,
	},
	// 软技能
	{
		Type:       "job_requirements",
		Category:   "soft_skills",
		Content:    "Communication skills (written and verbal), collaboration in cross-functional teams, problem-solving, adaptability to change, time management, attention to detail, continuous learning mindset, ability to work independently",
		Source:     "General requirements",
		Confidence: 85,
	},
}

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	appCoreLogger.Init(appCoreLogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	embedder, err := parser.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
	if err != nil {
		log.Fatalf("初始化Embedder失败: %v", err)
	}

	knowledgeHandler := handler.NewKnowledgeHandler(cfg, storageManager, embedder)

	successCount := 0
	for i, entry := range seedEntries {
		id, err := knowledgeHandler.HandleAddKnowledge(ctx, entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "第%d条知识写入失败: %v\n", i+1, err)
			continue
		}
		fmt.Printf("已写入: %s (%s/%s)\n", id, entry.Type, entry.Category)
		successCount++
	}

	fmt.Printf("知识库初始化完成: %d/%d 条写入成功\n", successCount, len(seedEntries))
	if successCount < len(seedEntries) {
		os.Exit(1)
	}
}
