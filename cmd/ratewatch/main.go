package main

import (
	"github.com/joho/godotenv"

	"ratewatch/internal/cli"
)

func main() {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cli.Execute()
}
