package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jenz26/afflyt/seed/seeders"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		seedType = flag.String("type", "all", "Type of seeding: all, links, clicks")
		owner    = flag.String("owner", "demo-user", "Owner user id for seeded data")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	db, err := gorm.Open(postgres.Open(databaseDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	mainSeeder := seeders.NewMainSeeder(db, *owner)

	switch *seedType {
	case "all":
		log.Println("Running complete database seeding...")
		if err := mainSeeder.SeedAll(); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	case "links":
		log.Println("Seeding links only...")
		if err := mainSeeder.SeedLinksOnly(); err != nil {
			log.Fatalf("Failed to seed links: %v", err)
		}
	case "clicks":
		log.Println("Seeding click history only...")
		if err := mainSeeder.SeedClicksOnly(); err != nil {
			log.Fatalf("Failed to seed clicks: %v", err)
		}
	default:
		log.Fatalf("Unknown seed type: %s. Use 'all', 'links' or 'clicks'", *seedType)
	}

	log.Println("Seeding operation completed successfully!")
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "afflyt")
	sslmode := envOr("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func showHelp() {
	log.Println(`
Database Seeding Tool for Afflyt

Usage: go run seed/main.go [flags]

Flags:
  -type string
        Type of seeding to perform (default "all")
        Options: all, links, clicks
  -owner string
        Owner user id for the seeded data (default "demo-user")
  -help
        Show this help message

Examples:
  # Seed demo channels, links and click history
  go run seed/main.go

  # Seed demo links only
  go run seed/main.go -type=links`)
}
