package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/config"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/server"
)

func main() {
	// Bootstrap logger for config loading
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		panic(err)
	}

	cfg := config.Load(log)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	log, err = logger.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}

	log.Info("Starting rfp-mcp server")

	srv := server.CreateServer(cfg, log)
	err = srv.Run(context.Background(), &mcp.StdioTransport{})
	if err != nil {
		log.Fatal("Server failed: %v", err)
	}
}
