package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"genstudio-backend/internal/config"
	pg "genstudio-backend/internal/infra/db/postgres"
)

// Seeds one chat and one image session for local development. Sessions are
// normally created by the session management service; this stands in for it.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	seeds := []struct {
		id, kind, title string
	}{
		{"dev-chat-session", "chat", "Dev chat session"},
		{"dev-image-session", "image", "Dev image session"},
	}

	inserted := 0
	for _, s := range seeds {
		tag, err := pool.Exec(ctx, `
			INSERT INTO sessions (id, kind, title, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING`,
			s.id, s.kind, s.title,
		)
		if err != nil {
			log.Fatalf("seed session %s: %v", s.id, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if inserted == 0 {
		fmt.Println("Sessions already present. No changes.")
		return
	}
	fmt.Printf("Seeded %d sessions.\n", inserted)
}
