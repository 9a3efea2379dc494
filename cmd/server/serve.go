package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell-go/internal/config"
	"inkwell-go/internal/handler"
	"inkwell-go/internal/middleware"
	"inkwell-go/internal/model"
	"inkwell-go/internal/pipeline"
	"inkwell-go/internal/repository"
	"inkwell-go/internal/service"
	"inkwell-go/pkg/database"
	"inkwell-go/pkg/es"
	"inkwell-go/pkg/kafka"
	"inkwell-go/pkg/llm"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/storage"
	"inkwell-go/pkg/token"
	"inkwell-go/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// setup 加载配置并初始化日志。
func setup() config.Config {
	config.Init(configPath)
	cfg := config.Conf
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	return cfg
}

func runMigrate() error {
	cfg := setup()
	defer log.Sync()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db, model.All()...); err != nil {
		return err
	}
	log.Info("数据库迁移完成")
	return nil
}

func runServe() error {
	// 1. 初始化配置与日志
	cfg := setup()
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}

	// 2. 初始化数据库和 Redis
	database.InitDB(cfg.Database)
	if err := database.AutoMigrate(database.DB, model.All()...); err != nil {
		return err
	}
	database.InitRedis(cfg.Database.Redis)
	defer database.CloseRedis()

	// 3. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	socialRepo := repository.NewSocialRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	postRepo := repository.NewPostRepository(database.DB)
	commentRepo := repository.NewCommentRepository(database.DB)
	holdingRepo := repository.NewHoldingRepository(database.DB)
	mediaRepo := repository.NewMediaRepository(database.DB)
	blacklist := repository.NewTokenBlacklist(database.RDB)

	// 4. 可选的外部依赖：Elasticsearch 与 MinIO
	// 未启用时必须保持接口为 nil，服务层据此降级
	var (
		searcher service.PostSearcher
		indexer  pipeline.PostIndexer
	)
	if cfg.Elasticsearch.Enabled {
		index, err := es.NewPostIndex(cfg.Elasticsearch)
		if err != nil {
			return fmt.Errorf("初始化 Elasticsearch 失败: %w", err)
		}
		searcher, indexer = index, index
	} else {
		log.Info("Elasticsearch 未启用，搜索回退到数据库")
	}

	var mediaService service.MediaService
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewStore(context.Background(), cfg.MinIO)
		if err != nil {
			return fmt.Errorf("初始化 MinIO 失败: %w", err)
		}
		mediaService = service.NewMediaService(store, mediaRepo, cfg.MinIO.MaxUploadMB)
	} else {
		log.Info("MinIO 未配置，媒体上传接口不可用")
	}

	// 5. 后台任务：启用 Kafka 时异步消费，否则同步执行
	processor := pipeline.NewProcessor(conversationRepo, postRepo, indexer)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var publisher kafka.Publisher = kafka.InlinePublisher{Processor: processor}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
		consumer := kafka.NewConsumer(cfg.Kafka, processor, kafka.RedisAttemptCounter{Client: database.RDB})
		go consumer.Run(consumerCtx)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, socialRepo, blacklist, jwtManager)
	postService := service.NewPostService(postRepo, publisher)

	services := handler.Services{
		JWT:          jwtManager,
		User:         userService,
		Admin:        service.NewAdminService(userRepo, conversationRepo),
		Conversation: service.NewConversationService(conversationRepo),
		Chat:         service.NewChatService(llmClient, conversationRepo, publisher, cfg.LLM.SystemPrompt),
		Post:         postService,
		Comment:      service.NewCommentService(postService, commentRepo),
		Social:       service.NewSocialService(postService, userRepo, socialRepo),
		Holding:      service.NewHoldingService(holdingRepo),
		Media:        mediaService,
		Search:       service.NewSearchService(searcher, postRepo),
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.Metrics(), otelgin.Middleware(cfg.Tracing.ServiceName), gin.Recovery())
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	handler.RegisterRoutes(r, services)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 先停止接收请求，进行中的流式对话在超时前可以正常结束
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}
	stopConsumer()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}
	shutdownTracing(context.Background())

	log.Info("服务已优雅关闭")
	return nil
}
