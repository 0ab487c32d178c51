package main

import (
	"context"
	"fmt"
	"os"

	"github.com/traceloom/traceloom-backend/internal/data/blackboard"
	"github.com/traceloom/traceloom-backend/internal/data/db"
	"github.com/traceloom/traceloom-backend/internal/data/elements"
	graphstore "github.com/traceloom/traceloom-backend/internal/data/graph"
	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	"github.com/traceloom/traceloom-backend/internal/http/handlers"
	"github.com/traceloom/traceloom-backend/internal/jobs/pipeline/alignment_build"
	"github.com/traceloom/traceloom-backend/internal/jobs/worker"
	alignmentmod "github.com/traceloom/traceloom-backend/internal/modules/alignment"
	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
	"github.com/traceloom/traceloom-backend/internal/platform/neo4jdb"
	"github.com/traceloom/traceloom-backend/internal/realtime"
	"github.com/traceloom/traceloom-backend/internal/realtime/bus"
	"github.com/traceloom/traceloom-backend/internal/server"
	"github.com/traceloom/traceloom-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	sessionRepo := repos.NewSessionRepo(thePG, log)
	elementRepo := repos.NewElementRepo(thePG, log)
	mergeLogRepo := repos.NewMergeLogRepo(thePG, log)
	tesseractRepo := repos.NewTesseractRepo(thePG, log)
	vennRepo := repos.NewVennRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	aiClient, err := llm.NewClient(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j init failed; trace graph writes will be skipped", "error", err)
	}
	if neoClient != nil {
		defer neoClient.Close(context.Background())
	}
	traceGraph := graphstore.NewStore(neoClient, log)

	// Realtime
	log.Info("Setting up SSE hub from main...")
	sseHub := realtime.NewSSEHub(log)
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: sseHub}
	if sseBus, busErr := bus.NewSSEBus(log); busErr != nil {
		log.Warn("Redis SSE bus unavailable; emitting to local hub only", "error", busErr)
	} else {
		emitter = &services.RedisEmitter{Bus: sseBus}
		if fwdErr := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); fwdErr != nil {
			log.Warn("Redis SSE forwarder failed to start", "error", fwdErr)
		}
		defer sseBus.Close()
	}
	notifier := services.NewSessionNotifier(emitter)

	// Worker
	log.Info("Setting up alignment worker from main...")
	source := elements.NewRepoSource(elementRepo)
	pipeline := alignment_build.New(
		thePG,
		log,
		aiClient,
		source,
		traceGraph,
		sessionRepo,
		elementRepo,
		mergeLogRepo,
		tesseractRepo,
		vennRepo,
	)
	worker.NewWorker(thePG, log, sessionRepo, pipeline, notifier).Start(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	healthHandler := handlers.NewHealthHandler()
	sessionHandler := handlers.NewSessionHandler(log, sessionRepo, elementRepo, mergeLogRepo, vennRepo, notifier)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

	var bb blackboard.Store
	if redisBB, bbErr := blackboard.NewRedisStore(log); bbErr != nil {
		log.Warn("Redis blackboard unavailable; using in-memory store", "error", bbErr)
		bb = blackboard.NewMemoryStore()
	} else {
		bb = redisBB
	}
	toolsHandler := handlers.NewToolsHandler(log, alignmentmod.UsecasesDeps{
		Log:       log,
		AI:        aiClient,
		Source:    source,
		Graph:     traceGraph,
		Sessions:  sessionRepo,
		Elements:  elementRepo,
		MergeLog:  mergeLogRepo,
		Tesseract: tesseractRepo,
		Venn:      vennRepo,
	}, bb)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		HealthHandler:   healthHandler,
		SessionHandler:  sessionHandler,
		RealtimeHandler: realtimeHandler,
		ToolsHandler:    toolsHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
