package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/sharpcrmgo/internal/config"
	"github.com/xelth-com/sharpcrmgo/internal/database"
	"github.com/xelth-com/sharpcrmgo/internal/handlers"
	"github.com/xelth-com/sharpcrmgo/internal/models"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Synchronize schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},

		// Catalog (read-only lookup tables)
		&models.Department{},
		&models.Instrument{},
		&models.InstrumentService{},
		&models.Part{},

		// CRM core
		&models.Lead{},
		&models.Message{},
		&models.Tag{},
		&models.LeadTag{},
		&models.ServiceFile{},
		&models.Tray{},
		&models.TrayItem{},
		&models.TrayItemBrand{},
		&models.TrayItemBrandSerial{},

		// Pipeline and audit
		&models.PipelineItem{},
		&models.StageHistory{},
		&models.ItemEvent{},

		// Archive
		&models.ServiceFileArchive{},
		&models.ArchiveTrayItem{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. HTTP server
	router := handlers.NewRouter(db, cfg)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("🌍 API listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("⚠️ Database close error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
