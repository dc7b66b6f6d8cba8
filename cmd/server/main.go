// Package main 是应用程序的入口点。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civic-relay-go/internal/config"
	"civic-relay-go/internal/handler"
	"civic-relay-go/internal/middleware"
	"civic-relay-go/internal/model"
	"civic-relay-go/internal/pipeline"
	"civic-relay-go/internal/repository"
	"civic-relay-go/internal/service"
	"civic-relay-go/pkg/database"
	"civic-relay-go/pkg/es"
	"civic-relay-go/pkg/kafka"
	"civic-relay-go/pkg/knowledge"
	"civic-relay-go/pkg/log"
	"civic-relay-go/pkg/storage"
	"civic-relay-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Elasticsearch
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.AutoMigrate(&model.User{}, &model.Article{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	articleRepository := repository.NewArticleRepository(database.DB)
	feedCacheRepository := repository.NewFeedCacheRepository(database.RDB)

	// 5. 初始化导入种子文章（幂等，已入库的 slug 会被跳过）
	seedArticles(cfg.Feed.SeedFile, articleRepository)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	knowledgeClient := knowledge.NewClient(cfg.Knowledge)
	chatService := service.NewChatService(knowledgeClient)
	userService := service.NewUserService(userRepository, jwtManager, chatService, feedCacheRepository)
	feedService, err := service.NewFeedService(articleRepository, feedCacheRepository, time.Duration(cfg.Feed.CacheTTLSeconds)*time.Second)
	if err != nil {
		log.Fatal("初始化信息流服务失败", err)
	}
	searchService := service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName)

	// 7. 启动后台 Kafka 消费者处理文章入库任务
	processor := pipeline.NewProcessor(articleRepository, feedService, cfg.Elasticsearch)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
				authed.PUT("/preferences", handler.NewUserHandler(userService).UpdatePreferences)
			}
		}

		// Chat 路由组，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chat.POST("/query", chatHandler.Query)
			chat.GET("/transcript", chatHandler.GetTranscript)
			chat.GET("/websocket-token", chatHandler.GetWebsocketToken)
		}

		// Feed 路由组，需要认证
		feed := apiV1.Group("/feed")
		feed.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			feed.GET("", handler.NewFeedHandler(feedService).GetFeed)
		}

		// Search 路由组，需要认证
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.GET("", handler.NewSearchHandler(searchService).Search)
		}

		// Ingest 路由组，需要认证：上传文章批次并触发异步入库
		ingest := apiV1.Group("/ingest")
		ingest.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			ingest.POST("/batch", handler.NewIngestHandler(cfg.MinIO).UploadBatch)
		}
	}
	// Chat WebSocket 路由（token 在路径中验证）
	r.GET("/chat/:token", chatHandler.HandleWebsocket)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// seedArticles 从本地种子文件导入文章（幂等）。
// 文件结构与 Kafka 入库批次一致，便于在开发环境不依赖抓取管道。
func seedArticles(path string, articleRepo repository.ArticleRepository) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Infof("seedArticles: 种子文件 '%s' 不存在或不可读，跳过初始化导入", path)
		return
	}

	var batch pipeline.ArticleBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		log.Warnf("seedArticles: 解析种子文件失败: %v", err)
		return
	}

	created := 0
	for _, item := range batch.Articles {
		if item.CategoryName == "" || item.Title == "" {
			continue
		}
		article := model.Article{
			CategoryName: item.CategoryName,
			Title:        item.Title,
			Summary:      item.Summary,
			Body:         item.Body,
			References:   model.JoinReferences(item.References),
		}
		ok, err := articleRepo.Upsert(&article)
		if err != nil {
			log.Warnf("seedArticles: 导入文章失败: %s, err=%v", article.Slug(), err)
			continue
		}
		if ok {
			created++
		}
	}
	log.Infof("seedArticles: 导入完成, 新增 %d 篇", created)
}
