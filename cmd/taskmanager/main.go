package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"taskmanager/cmd/internal/app"
)

func main() {
	// Real environment variables win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
