// Package main provides the erpbridge sync entry point: a scheduled Lambda handler
// when running in AWS Lambda, and a local CLI otherwise.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/peteski22/erpbridge/internal/app"
	"github.com/peteski22/erpbridge/internal/config"
)

// lambdaFunctionEnv is set by the Lambda runtime.
const lambdaFunctionEnv = "AWS_LAMBDA_FUNCTION_NAME"

func main() {
	if os.Getenv(lambdaFunctionEnv) != "" {
		if err := runLambda(); err != nil {
			slog.Error("starting lambda", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runLambda() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	settings, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine, err := app.NewFromSettings(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	lambda.Start(newScheduledHandler(engine.Registry, settings.Sync, logger))
	return nil
}
