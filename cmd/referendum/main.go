package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"referendum-pipeline/internal/config"
	"referendum-pipeline/internal/pipeline"
	"referendum-pipeline/internal/store"
	"referendum-pipeline/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("❌ Error parsing configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "referendum-pipeline", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("❌ Telemetry setup failed: %v", err)
	}
	defer shutdown(context.Background())

	if err := store.InitDB(cfg.DBPath); err != nil {
		log.Fatalf("❌ Database init failed: %v", err)
	}
	defer store.Close()

	runID := uuid.New().String()
	spec := cfg.RunSpec()
	if err := store.SaveRun(runID, spec); err != nil {
		log.Fatalf("❌ Failed to save run: %v", err)
	}

	if err := pipeline.Execute(ctx, runID, spec); err != nil {
		log.Fatalf("❌ Run %s failed: %v", runID, err)
	}

	results, err := store.GetFinalResults(runID)
	if err != nil {
		log.Fatalf("❌ Failed to read results: %v", err)
	}

	fmt.Printf("%-6s %-28s %12s %12s %10s %12s %12s %8s\n",
		"code", "region", "registered", "abstentions", "null", "choice A", "choice B", "ratio")
	for _, r := range results {
		ratio := "n/a"
		if r.Ratio.Valid {
			ratio = fmt.Sprintf("%.4f", r.Ratio.Value)
		}
		fmt.Printf("%-6s %-28s %12d %12d %10d %12d %12d %8s\n",
			r.CodeReg, r.NameReg, r.Registered, r.Abstentions, r.Null, r.ChoiceA, r.ChoiceB, ratio)
	}
}
