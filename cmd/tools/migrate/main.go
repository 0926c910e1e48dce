package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(*source, dbURL)
	if err != nil {
		log.Fatalf("Failed to initialise migrations: %v", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("close source: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("close database: %v", dbErr)
		}
	}()

	cmd := "up"
	if args := flag.Args(); len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if args := flag.Args(); len(args) > 1 {
			if parsed, parseErr := strconv.Atoi(args[1]); parseErr == nil {
				steps = parsed
			}
		}
		err = m.Steps(-steps)
	case "drop":
		err = m.Drop()
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			log.Fatalf("Failed to read version: %v", verErr)
		}
		log.Printf("version=%d dirty=%v", version, dirty)
		return
	default:
		log.Fatalf("Unknown command %q (want up, down, drop, or version)", cmd)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No pending migrations")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations applied successfully!")
}
