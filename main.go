package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/server"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)

	// Optional .env; environment and flags take precedence.
	_ = godotenv.Load()

	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, releaseVersion, server.Run).Execute())
}
