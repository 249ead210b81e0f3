// Package main provides the Lambda handler for ERP webhooks delivered through API Gateway.
package main

import (
	"context"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/peteski22/erpbridge/internal/app"
	"github.com/peteski22/erpbridge/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	settings, err := config.Load()
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	engine, err := app.NewFromSettings(context.Background(), settings, logger)
	if err != nil {
		logger.Error("creating app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	lambda.Start(newHandler(engine.Registry, logger))
}
