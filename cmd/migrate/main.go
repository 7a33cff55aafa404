// Command migrate applies the embedded schema to TASKS_DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"taskmanager/cmd/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	dsn := flag.String("database-url", "", "overrides TASKS_DATABASE_URL")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("migrate.env.fail", "err", err)
		os.Exit(1)
	}

	url := *dsn
	if url == "" {
		url = os.Getenv("TASKS_DATABASE_URL")
	}

	if err := migrations.Run(url, *direction); err != nil {
		log.Error("migrate.fail", "direction", *direction, "err", err)
		os.Exit(1)
	}
	log.Info("migrate.ok", "direction", *direction)
}
