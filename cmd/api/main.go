package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simulearn/internal/archive"
	"simulearn/internal/config"
	"simulearn/internal/gateway/handler"
	"simulearn/internal/gateway/server"
	"simulearn/internal/llmclient"
	"simulearn/internal/media"
	"simulearn/internal/sim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	llm, img, err := buildClients(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize model clients: %v", err)
	}
	defer llm.Close()
	defer img.Close()

	archiveStore := buildArchive(cfg)
	mediaStore := buildMedia(cfg)

	runs, err := sim.NewManager(sim.ManagerOptions{
		Turns:   sim.NewTurnGenerator(llm, cfg.TurnTimeout),
		Visuals: sim.NewVisualGenerator(img, llm, cfg.ImageTimeout, cfg.SceneTimeout),
		Archive: archiveStore,
		Media:   mediaStore,
	})
	if err != nil {
		log.Fatalf("Failed to initialize run registry: %v", err)
	}

	mux := server.NewMux(handler.New(runs, archiveStore, mediaStore))
	srv := server.New(cfg.Port, mux)

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	runs.Wait()

	log.Println("Server exiting")
}

// buildClients returns the model clients, wrapped with retry and logging.
// Offline mode runs entirely on canned fakes so the API works without
// credentials.
func buildClients(cfg *config.Config) (llmclient.LLMClient, llmclient.ImageClient, error) {
	if cfg.Offline() {
		log.Println("Running in offline mode with fake model clients")
		return llmclient.NewFakeClient(), llmclient.NewFakeImageClient(), nil
	}
	gemini, err := llmclient.NewGeminiClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.TurnModel, cfg.Gemini.ImageModel)
	if err != nil {
		return nil, nil, err
	}
	llm := llmclient.Wrap(gemini,
		llmclient.WithLogging(nil),
		llmclient.Retry(3, 300*time.Millisecond),
	)
	return llm, gemini, nil
}

func buildArchive(cfg *config.Config) archive.Store {
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		s, err := archive.NewPostgresStore(dsn)
		if err == nil {
			log.Println("Archive backend: postgres")
			return archive.NewCachedStore(s, 256)
		}
		log.Printf("Archive postgres unavailable, falling back to file store: %v", err)
	}
	if cfg.Archive.Path != "" {
		log.Printf("Archive backend: file (%s)", cfg.Archive.Path)
		return archive.NewFileStore(cfg.Archive.Path)
	}
	log.Println("Archive backend: memory")
	return archive.NewMemoryStore()
}

func buildMedia(cfg *config.Config) media.Store {
	if cfg.Media.Enabled {
		s, err := media.NewS3Store(media.S3Config{
			Endpoint:  cfg.Media.Endpoint,
			Region:    cfg.Media.Region,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			Bucket:    cfg.Media.Bucket,
			UseSSL:    cfg.Media.UseSSL,
		})
		if err == nil {
			log.Println("Media backend: s3")
			return s
		}
		log.Printf("Media s3 unavailable, falling back to memory store: %v", err)
	}
	log.Println("Media backend: memory")
	return media.NewMemoryStore()
}
