package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brainlane/internal/analysis"
	"brainlane/internal/config"
	"brainlane/internal/llm"
	"brainlane/internal/llmclient"
	"brainlane/internal/proxy"
	"brainlane/internal/realtime"
	"brainlane/internal/repository/artifact"
	"brainlane/internal/repository/project"
	"brainlane/internal/server"
)

func main() {
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	store, err := buildProjectStore(cfg)
	if err != nil {
		log.Fatalf("project store: %v", err)
	}
	artifacts, err := buildArtifactStore(cfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	defer client.Close()
	client = llm.Wrap(client,
		llm.WithLogging(nil),
		llm.Retry(cfg.LLMRetries, cfg.LLMBaseDelay),
		llm.RateLimit(cfg.LLMRPS, cfg.LLMBurst),
	)

	hub := realtime.NewHub()
	api := server.NewAPI(store, artifacts, analysis.NewService(llm.NewEngine(client), store), client, hub)
	defer api.Queue().Stop()

	proxyHandler := proxy.NewHandler(proxy.Config{
		UpstreamURL: cfg.ProxyUpstreamURL,
		APIKey:      cfg.OpenAIKey,
		Heartbeat:   cfg.ProxyHeartbeat,
		Deadline:    cfg.ProxyDeadline,
	})

	srv := server.New(cfg.Port, api.Routes(proxyHandler))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}

func buildProjectStore(cfg config.Config) (project.Store, error) {
	var inner project.Store
	if cfg.PostgresDSN != "" {
		ps, err := project.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		inner = ps
	} else {
		fs, err := project.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		inner = fs
	}
	return project.NewCachedStore(inner, cfg.CacheSize)
}

func buildArtifactStore(cfg config.Config) (artifact.Store, error) {
	if cfg.S3.Endpoint == "" {
		return artifact.NewMemoryStore(), nil
	}
	return artifact.NewS3Store(artifact.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	})
}

func buildClient(cfg config.Config) (llmclient.Client, error) {
	switch cfg.Provider {
	case "gemini":
		return llmclient.NewGeminiClient(context.Background(), cfg.GeminiKey, cfg.GeminiModel, 0)
	case "ollama":
		return llmclient.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, 0)
	case "fake":
		return llm.NewFakeClient(0), nil
	default:
		return llmclient.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIURL, 0)
	}
}
