// Command seed loads a YAML roster into the children and
// recipient_mappings tables. Rows are upserted, so the tool can be
// re-run after editing the roster file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"child-monitoring/internal/db"
	directory "child-monitoring/internal/directory/domain"
	"child-monitoring/internal/directory/infrastructure/postgres"
)

type rosterFile struct {
	Children []rosterChild `yaml:"children"`
}

type rosterChild struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	DeviceID   string            `yaml:"device_id"`
	Recipients []rosterRecipient `yaml:"recipients"`
}

type rosterRecipient struct {
	RecipientID string `yaml:"recipient_id"`
	Role        string `yaml:"role"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

func main() {
	var (
		dsn  string
		file string
	)
	flag.StringVar(&dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&file, "file", "roster.yaml", "roster YAML file")
	flag.Parse()

	if dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	roster, err := loadRoster(file)
	if err != nil {
		log.Fatalf("load roster: %v", err)
	}
	if len(roster.Children) == 0 {
		log.Fatalf("roster %s lists no children", file)
	}

	conn, err := db.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	children := postgres.NewChildRepository(conn)
	mappings := postgres.NewMappingRepository(conn)

	ctx := context.Background()
	var childCount, mappingCount int
	for _, entry := range roster.Children {
		child := directory.Child{
			ID:       strings.TrimSpace(entry.ID),
			Name:     strings.TrimSpace(entry.Name),
			DeviceID: strings.TrimSpace(entry.DeviceID),
		}
		if err := children.Save(ctx, &child); err != nil {
			log.Fatalf("save child %q: %v", child.ID, err)
		}
		childCount++

		for _, rec := range entry.Recipients {
			role, err := directory.ParseRole(strings.TrimSpace(rec.Role))
			if err != nil {
				log.Fatalf("child %q: %v", child.ID, err)
			}
			mapping := directory.RecipientMapping{
				RecipientID: strings.TrimSpace(rec.RecipientID),
				ChildID:     child.ID,
				Role:        role,
				Active:      rec.Active == nil || *rec.Active,
			}
			if err := mappings.Save(ctx, &mapping); err != nil {
				log.Fatalf("save mapping %q -> %q: %v", mapping.RecipientID, child.ID, err)
			}
			mappingCount++
		}
	}

	log.Printf("roster seeded: children=%d mappings=%d file=%s", childCount, mappingCount, file)
}

func loadRoster(path string) (*rosterFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roster rosterFile
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
