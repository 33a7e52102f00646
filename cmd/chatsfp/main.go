package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/obtic-sorbonne/chatsfp/api"
	"github.com/obtic-sorbonne/chatsfp/api/handler"
	"github.com/obtic-sorbonne/chatsfp/api/middleware"
	"github.com/obtic-sorbonne/chatsfp/config"
	"github.com/obtic-sorbonne/chatsfp/internal/cache"
	"github.com/obtic-sorbonne/chatsfp/internal/database"
	"github.com/obtic-sorbonne/chatsfp/internal/document"
	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/index"
	"github.com/obtic-sorbonne/chatsfp/internal/llm"
	"github.com/obtic-sorbonne/chatsfp/internal/repository"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
	"github.com/obtic-sorbonne/chatsfp/internal/services"
	"github.com/obtic-sorbonne/chatsfp/internal/tei"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
	"github.com/obtic-sorbonne/chatsfp/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "override server port")
	logLevel := flag.String("log-level", "", "override log level")
	flag.Parse()

	// .env不存在时静默跳过
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := setupLogger(cfg.Log)
	middleware.SetLogger(logger)

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = cfg.Database.DSN
	if err := database.Setup(dbCfg, logger); err != nil {
		logger.Fatalf("Failed to setup database: %v", err)
	}
	defer database.Close()
	catalog := repository.NewBulletinRepository(database.DB)

	store, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to setup corpus storage: %v", err)
	}

	embedder, err := newEmbedder(cfg, cfg.Embedding.Model)
	if err != nil {
		logger.Fatalf("Failed to create embedding client: %v", err)
	}

	llmOpts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithTopP(cfg.LLM.TopP),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithReferer(cfg.LLM.Referer, cfg.LLM.Title),
	}
	if cfg.LLM.NoSystemRole {
		llmOpts = append(llmOpts, llm.WithoutSystemRole())
	}
	llmClient, err := llm.NewClient(cfg.LLM.Provider, llmOpts...)
	if err != nil {
		logger.Fatalf("Failed to create llm client: %v", err)
	}

	splitter, err := document.NewTextSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
	})
	if err != nil {
		logger.Fatalf("Invalid splitter config: %v", err)
	}

	builder := index.NewBuilder(embedder, vectordb.Config{
		Type:     cfg.Index.Type,
		Path:     cfg.Index.Path,
		Distance: vectordb.Cosine,
	},
		index.WithBatchSize(cfg.Embedding.BatchSize),
		index.WithLogger(logger),
	)

	retrieverOpts := []retriever.Option{
		retriever.WithTopK(cfg.Search.TopK),
		retriever.WithFetchK(cfg.Search.FetchK),
		retriever.WithLambda(cfg.Search.Lambda),
		retriever.WithLogger(logger),
	}

	session := services.NewSession()
	loadExistingIndex(cfg, session, logger)

	loader := tei.NewLoader(store, tei.WithLogger(logger))
	ingestService := services.NewIngestService(loader, splitter, builder, embedder,
		services.WithCatalog(catalog),
		services.WithIngestLogger(logger),
		services.WithRetrieverOptions(retrieverOpts...),
	)

	qaOpts := []services.QAOption{services.WithQALogger(logger)}
	if cfg.Cache.Enable {
		answerCache, err := cache.NewCache(cache.Config{
			Type:          cfg.Cache.Type,
			TTL:           cfg.Cache.TTL,
			RedisAddr:     cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			logger.Warnf("Failed to setup answer cache, continuing without: %v", err)
		} else {
			qaOpts = append(qaOpts, services.WithAnswerCache(answerCache, cfg.Cache.TTL))
		}
	}
	qaService := services.NewQAService(llmClient, qaOpts...)

	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(
		handler.NewQAHandler(qaService, session),
		handler.NewIngestHandler(ingestService, session),
		handler.NewBulletinHandler(catalog),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server stopped")
}

// setupLogger 配置日志输出，指定文件时按大小滚动
func setupLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
	return logger
}

// setupStorage 创建语料存储
func setupStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Corpus.Storage {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Corpus.Minio.Endpoint,
			AccessKey: cfg.Corpus.Minio.AccessKey,
			SecretKey: cfg.Corpus.Minio.SecretKey,
			Bucket:    cfg.Corpus.Minio.Bucket,
			Prefix:    cfg.Corpus.Minio.Prefix,
			UseSSL:    cfg.Corpus.Minio.UseSSL,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			Paths: cfg.Corpus.Paths,
		})
	}
}

// newEmbedder 按模型名创建嵌入客户端，提供商和密钥来自配置
func newEmbedder(cfg *config.Config, model string) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithAPIKey(cfg.Embedding.APIKey),
		embedding.WithBaseURL(cfg.Embedding.BaseURL),
		embedding.WithModel(model),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithMaxRetries(cfg.Embedding.MaxRetries),
	}
	// 预先声明维度后，加载索引时的维度校验在首次调用前就能生效
	if cfg.Embedding.Dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(cfg.Embedding.Dimensions))
	}
	return embedding.NewClient(cfg.Embedding.Provider, opts...)
}

// loadExistingIndex 尝试加载已持久化的索引
// 没有索引不是错误，等用户触发入库；损坏的索引记错误日志后继续启动
func loadExistingIndex(cfg *config.Config, session *services.Session, logger *logrus.Logger) {
	if _, err := os.Stat(cfg.Index.Path); err != nil {
		logger.Info("No prebuilt index found, waiting for ingestion")
		return
	}

	factory := func(model string) (embedding.Client, error) {
		return newEmbedder(cfg, model)
	}
	ret, meta, err := index.Load(index.LoadConfig{
		Path:     cfg.Index.Path,
		RepoType: cfg.Index.Type,
		TopK:     cfg.Search.TopK,
		FetchK:   cfg.Search.FetchK,
		Lambda:   cfg.Search.Lambda,
	}, factory, logger)
	if err != nil {
		logger.Errorf("Failed to load existing index: %v", err)
		return
	}
	session.AttachIndex(ret, meta)
}
