package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Tutor-DA/quiz-api/internal/config"
	"github.com/Tutor-DA/quiz-api/internal/handler"
	"github.com/Tutor-DA/quiz-api/internal/middleware"
	pgRepo "github.com/Tutor-DA/quiz-api/internal/repository/postgres"
	redisRepo "github.com/Tutor-DA/quiz-api/internal/repository/redis"
	"github.com/Tutor-DA/quiz-api/internal/service"
	ws "github.com/Tutor-DA/quiz-api/internal/websocket"
	"github.com/Tutor-DA/quiz-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := os.Getenv("GIN_MODE") == "release"

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	quizRepo := pgRepo.NewQuizRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	resultRepo := pgRepo.NewResultRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем WebSocket-подсистему
	wsHub := ws.NewHubWithBuffer(cfg.WebSocket.Buffers.BroadcastBuffer)
	go wsHub.Run()
	wsManager := ws.NewManager(wsHub)

	// Инициализируем сервисы
	quizService := service.NewQuizService(quizRepo, questionRepo)
	quizService.SetDefaultTimings(cfg.Engine.DefaultTimeLimitMs, cfg.Engine.DefaultRevealDelayMs)
	resultService := service.NewResultService(resultRepo, cacheRepo)
	sessionRunner := service.NewSessionRunner(quizRepo, resultRepo, cacheRepo, wsManager)
	sessionRunner.SetTickInterval(cfg.Engine.TickInterval())

	// Инициализируем обработчики
	quizHandler := handler.NewQuizHandler(quizService, resultService)
	sessionHandler := handler.NewSessionHandler(sessionRunner, resultService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, sessionRunner)
	wsHandler.SetClientConfig(ws.ClientConfig{
		BufferSize:     cfg.WebSocket.Buffers.ClientSendBuffer,
		PingInterval:   time.Duration(cfg.WebSocket.Ping.Interval) * time.Second,
		PongWait:       time.Duration(cfg.WebSocket.Limits.PongWait) * time.Second,
		WriteWait:      time.Duration(cfg.WebSocket.Limits.WriteWait) * time.Second,
		MaxMessageSize: int64(cfg.WebSocket.Limits.MaxMessageSize),
	})

	// Инициализируем middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	// В production (GIN_MODE=release): не доверяем прокси (защита от IP spoofing)
	// В development: доверяем localhost
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8000", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	api.Use(rateLimiter.LimitByIP(middleware.DefaultAPIRateLimitConfig()))
	{
		// Викторины
		quizzes := api.Group("/quizzes")
		{
			quizzes.GET("", quizHandler.ListQuizzes)
			quizzes.POST("", quizHandler.CreateQuiz)

			// Группа маршрутов, требующих quizID
			quizWithID := quizzes.Group("/:id")
			quizWithID.Use(middleware.ExtractUintParam("id", "quizID")) // Применяем middleware
			{
				quizWithID.GET("", quizHandler.GetQuiz)
				quizWithID.GET("/with-questions", quizHandler.GetQuizWithQuestions)
				quizWithID.PUT("", quizHandler.UpdateQuiz)
				quizWithID.DELETE("", quizHandler.DeleteQuiz)

				quizWithID.POST("/questions", quizHandler.AddQuestions)
				quizWithID.POST("/questions/import", quizHandler.ImportQuestions)

				quizWithID.GET("/results", quizHandler.GetQuizResults)
				quizWithID.GET("/results/export", quizHandler.ExportQuizResults)
				quizWithID.GET("/statistics", quizHandler.GetQuizStatistics)
				quizWithID.GET("/leaderboard", sessionHandler.GetLiveLeaderboard)
			}
		}

		// Вопросы (удаление по собственному ID вопроса)
		questions := api.Group("/questions/:id")
		questions.Use(middleware.ExtractUintParam("id", "questionID"))
		{
			questions.DELETE("", quizHandler.DeleteQuestion)
		}

		// Сессии
		sessions := api.Group("/sessions")
		{
			sessions.POST("", rateLimiter.Limit(middleware.SessionStartRateLimitConfig()), sessionHandler.StartSession)

			sessionWithID := sessions.Group("/:session_id")
			{
				sessionWithID.GET("", sessionHandler.GetSession)
				sessionWithID.POST("/answer", sessionHandler.SubmitAnswer)
				sessionWithID.POST("/advance", sessionHandler.Advance)
				sessionWithID.POST("/cancel", sessionHandler.CancelSession)
				sessionWithID.DELETE("", sessionHandler.CancelSession)
				sessionWithID.GET("/result", sessionHandler.GetSessionResult)
				sessionWithID.GET("/attempts", sessionHandler.GetSessionAttempts)
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Ждем сигнал остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Отменяем активные сессии и закрываем WebSocket-подсистему
	sessionRunner.Shutdown()
	wsHub.Close()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
