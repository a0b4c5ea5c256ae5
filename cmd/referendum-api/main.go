package main

import (
	"context"
	"log"
	"os"

	"referendum-pipeline/internal/api"
	"referendum-pipeline/internal/config"
	"referendum-pipeline/internal/store"
	"referendum-pipeline/internal/telemetry"
	"referendum-pipeline/pkg/router"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("❌ Error parsing configuration: %v", err)
	}

	shutdown, err := telemetry.Setup(context.Background(), "referendum-pipeline-api", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("❌ Telemetry setup failed: %v", err)
	}
	defer shutdown(context.Background())

	// Init DB
	if err := store.InitDB(cfg.DBPath); err != nil {
		log.Fatalf("❌ Database init failed: %v", err)
	}
	defer store.Close()

	r := router.New()
	api.RegisterRoutes(r)

	if err := r.Start(cfg.Addr); err != nil {
		log.Printf("❌ Server stopped: %v", err)
	}
}
