package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/sparkforge/nigel/cmd"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
