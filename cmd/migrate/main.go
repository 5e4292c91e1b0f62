// Command migrate applies the SQL migrations against the master database.
// Pass "down" to roll the last migration back; the default is a full up.
package main

import (
	"errors"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/wardenhq/warden/internal/config"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	m, err := migrate.New("file://migrations", cfg.Database.MasterURL()+"?sslmode=disable")
	if err != nil {
		log.Fatalf("migration init failed: %v", err)
	}
	defer m.Close()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatalf("unknown direction %q (want up or down)", direction)
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("database is up to date")
	case err != nil:
		log.Fatalf("migration failed: %v", err)
	default:
		log.Println("migrations applied")
	}
}
