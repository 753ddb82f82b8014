package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"opsunify/internal/app"
)

func main() {
	// Optional .env for local development; deployments set the environment
	// directly.
	_ = godotenv.Load()

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
