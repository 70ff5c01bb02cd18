// Command reconcile re-indexes documents whose index entries drifted from
// their stored chunks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-docsearch-be/internal/bootstrap"
	"ai-docsearch-be/internal/config"
	"ai-docsearch-be/internal/service"
	"ai-docsearch-be/pkg/database"
	"ai-docsearch-be/pkg/events"
	pktNats "ai-docsearch-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	owner := flag.String("owner", "", "reconcile every document of this user id")
	doc := flag.String("doc", "", "reconcile a single document id")
	follow := flag.Bool("follow", false, "keep running and reconcile each DOCUMENT_PROCESSED event")
	durable := flag.String("durable", "reconcile-follower", "durable consumer name used with -follow")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Verbose)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}
	container, err := bootstrap.NewContainer(db, cfg)
	if err != nil {
		log.Fatalf("Unable to build container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler := container.ReconcileService
	if *follow {
		if err := runFollower(ctx, cfg.App.NatsURL, *durable, reconciler); err != nil {
			color.Red("Follower failed: %v", err)
			os.Exit(1)
		}
		return
	}

	reports, err := runOnce(ctx, reconciler, *owner, *doc)
	if err != nil {
		color.Red("Reconcile failed: %v", err)
		os.Exit(1)
	}
	if summarize(reports) > 0 {
		os.Exit(2)
	}
}

func runOnce(ctx context.Context, reconciler service.IReconcileService, owner, doc string) ([]*service.ReconcileReport, error) {
	switch {
	case doc != "":
		id, err := uuid.Parse(doc)
		if err != nil {
			return nil, fmt.Errorf("invalid -doc: %w", err)
		}
		report, err := reconciler.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		return []*service.ReconcileReport{report}, nil
	case owner != "":
		id, err := uuid.Parse(owner)
		if err != nil {
			return nil, fmt.Errorf("invalid -owner: %w", err)
		}
		return reconciler.ReconcileOwner(ctx, id)
	default:
		return reconciler.ReconcileAll(ctx)
	}
}

// summarize prints one line per document and returns how many still have
// missing entries.
func summarize(reports []*service.ReconcileReport) int {
	unresolved := 0
	for _, r := range reports {
		switch {
		case r.Skipped:
			color.White("skip     %s", r.DocumentId)
		case r.InSync && r.Repaired == 0:
			color.Green("in sync  %s (%d chunks)", r.DocumentId, r.Chunks)
		case r.Failed > 0:
			unresolved++
			color.Red("partial  %s repaired %d, failed %d of %d", r.DocumentId, r.Repaired, r.Failed, r.Chunks)
		default:
			color.Yellow("repaired %s (%d chunks)", r.DocumentId, r.Repaired)
		}
	}
	color.Cyan("%d documents checked, %d unresolved", len(reports), unresolved)
	return unresolved
}

func runFollower(ctx context.Context, natsURL, durable string, reconciler service.IReconcileService) error {
	if natsURL == "" {
		return fmt.Errorf("NATS_URL is not set")
	}
	sub, err := pktNats.NewSubscriber(natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Subscribe(ctx, events.DocumentProcessed, durable, func(ctx context.Context, event events.Event) error {
		raw, _ := event.Payload()["document_id"].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			// nothing to retry
			color.Red("bad event payload: %v", err)
			return nil
		}
		report, err := reconciler.Reconcile(ctx, id)
		if err != nil {
			return err
		}
		summarize([]*service.ReconcileReport{report})
		return nil
	})
	if err != nil {
		return err
	}

	color.Cyan("Following %s events, press Ctrl+C to stop", events.DocumentProcessed)
	<-ctx.Done()
	return nil
}
