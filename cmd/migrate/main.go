package main

import (
	"context"
	"log"

	"ai-docsearch-be/internal/config"
	"ai-docsearch-be/internal/model"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/pkg/database"
	"ai-docsearch-be/pkg/searchindex"
	"ai-docsearch-be/pkg/searchindex/pgindex"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Verbose)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	for _, sql := range []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	log.Println("Step 2: Migrating documents and document_chunks...")
	if err := db.AutoMigrate(&model.Document{}, &model.DocumentChunk{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating updated_at trigger...")
	for _, sql := range []string{
		`CREATE OR REPLACE FUNCTION set_current_timestamp_updated_at() RETURNS trigger LANGUAGE plpgsql AS $$
		BEGIN
		  NEW.updated_at = now();
		  RETURN NEW;
		END;
		$$;`,
		`DROP TRIGGER IF EXISTS set_documents_updated_at ON documents;`,
		`CREATE TRIGGER set_documents_updated_at BEFORE UPDATE ON documents FOR EACH ROW EXECUTE FUNCTION set_current_timestamp_updated_at();`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	if cfg.Search.Backend == "pgvector" {
		log.Println("Step 4: Provisioning pgvector search index...")
		if err := ensureVectorIndex(db, cfg); err != nil {
			log.Fatalf("Error: search index: %v", err)
		}
	}

	log.Println("✅ Migration completed")
}

func ensureVectorIndex(db *gorm.DB, cfg *config.Config) error {
	manager, err := searchindex.NewManager(pgindex.NewBackend(db), searchindex.ManagerConfig{
		Index:      cfg.Search.IndexName,
		Dimension:  cfg.Ai.EmbeddingDim,
		Similarity: searchindex.Similarity(cfg.Search.Similarity),
		Timeout:    cfg.Search.BackendTimeout,
	}, logger.NewNopLogger())
	if err != nil {
		return err
	}
	return manager.Ensure(context.Background())
}
