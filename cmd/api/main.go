package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/cache"
	"github.com/cleberrangel/minute-allocation-api/internal/config"
	"github.com/cleberrangel/minute-allocation-api/internal/database"
	"github.com/cleberrangel/minute-allocation-api/internal/handler"
	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/cleberrangel/minute-allocation-api/internal/middleware"
	"github.com/cleberrangel/minute-allocation-api/internal/migration"
	"github.com/cleberrangel/minute-allocation-api/internal/repository"
	"github.com/cleberrangel/minute-allocation-api/internal/service"
	"github.com/cleberrangel/minute-allocation-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

func main() {
	hashToken := flag.String("hash-token", "", "imprime o hash bcrypt do token para TOKEN_API_HASH e sai")
	rollback := flag.Bool("rollback", false, "desfaz a última migration aplicada e sai")
	flag.Parse()

	if *hashToken != "" {
		hash, err := middleware.HashToken(*hashToken)
		if err != nil {
			stdlog.Fatalf("Erro ao gerar hash: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Carrega configurações
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializa logger estruturado
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("log_json", cfg.LogJSON).
		Msg("Minute Allocation API iniciando")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Banco de dados e migrations
	db, err := database.Connect(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao conectar ao banco")
	}
	defer database.Close(db)

	migrator := migration.NewMigrator(db)
	if *rollback {
		if err := migrator.Rollback(ctx); err != nil {
			log.Fatal().Err(err).Msg("Erro ao desfazer migration")
		}
		return
	}
	if err := migrator.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Erro ao executar migrations")
	}

	// Inicializa dependências
	m := metrics.Get()
	registry := metrics.NewRegistry(m)

	recordCache := cache.NewCache(time.Duration(cfg.CacheTTLMinutes) * time.Minute)
	defer recordCache.Stop()

	hub := websocket.NewHub(m)
	go hub.Run(ctx)

	webhookTimeout := time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
	allocationService := service.NewAllocationService(service.AllocationServiceConfig{
		Store:          repository.NewAllocationRepository(db),
		Cache:          recordCache,
		Hub:            hub,
		Notifier:       service.NewWebhookService(webhookTimeout),
		Metrics:        m,
		WebhookTimeout: webhookTimeout,
	})

	// Configura modo do Gin
	gin.SetMode(cfg.GinMode)

	r := handler.NewRouter(handler.RouterConfig{
		Allocations: handler.NewAllocationHandler(allocationService),
		Health:      handler.NewHealthHandler(db, hub, m, registry, Version),
		WebSocket:   handler.NewWebSocketHandler(hub),
		Auth: middleware.AuthConfig{
			TokenAPI:     cfg.TokenAPI,
			TokenAPIHash: cfg.TokenAPIHash,
			Metrics:      m,
		},
		Limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute),
		Metrics: m,
	})

	// Debug memory endpoint (público)
	r.GET("/debug/memory", func(c *gin.Context) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		c.JSON(http.StatusOK, gin.H{
			"alloc_mb":       ms.Alloc / 1024 / 1024,
			"total_alloc_mb": ms.TotalAlloc / 1024 / 1024,
			"sys_mb":         ms.Sys / 1024 / 1024,
			"heap_alloc_mb":  ms.HeapAlloc / 1024 / 1024,
			"heap_inuse_mb":  ms.HeapInuse / 1024 / 1024,
			"heap_objects":   ms.HeapObjects,
			"goroutines":     runtime.NumGoroutine(),
			"gc_runs":        ms.NumGC,
			"gc_pause_total": ms.PauseTotalNs / 1000000, // ms
			"db_pool":        database.GetPoolStats(db),
		})
	})

	// Force GC endpoint (público)
	r.POST("/debug/gc", func(c *gin.Context) {
		runtime.GC()
		debug.FreeOSMemory()
		c.JSON(http.StatusOK, gin.H{"status": "gc_completed"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Inicia servidor
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Servidor iniciando")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Erro ao iniciar servidor")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Encerrando servidor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Erro ao encerrar servidor")
	}
	if err := allocationService.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Webhooks pendentes não concluídos")
	}

	log.Info().Msg("Servidor encerrado")
}
