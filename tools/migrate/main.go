// Command migrate applies or rolls back the embedded schema
// migrations against a Postgres database.
package main

import (
	"flag"
	"log"
	"os"

	"child-monitoring/internal/db/migrate"
)

func main() {
	var (
		dsn  string
		down bool
	)
	flag.StringVar(&dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.BoolVar(&down, "down", false, "roll back all migrations instead of applying them")
	flag.Parse()

	if dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	direction := "up"
	if down {
		direction = "down"
	}
	if err := migrate.Run(dsn, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
	log.Printf("migrations %s complete", direction)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
