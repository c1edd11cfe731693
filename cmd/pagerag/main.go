// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	pagerag "github.com/sableridge/pagerag"
	"github.com/sableridge/pagerag/ai"
	"github.com/sableridge/pagerag/ai/mock"
	"github.com/sableridge/pagerag/core"
)

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "pagerag",
		Usage: "Per-device web page question answering",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "Register a device and print its ID and quota",
				Action: registerCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "model",
						Usage:    "Device model string",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "os",
						Usage:    "OS version string",
						Required: true,
					},
				),
			},
			{
				Name:   "ingest",
				Usage:  "Ingest a web page for a device and wait for the result",
				Action: ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "device",
						Usage:    "Device ID from register",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Page URL to ingest",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "How long to wait for completion (0 submits and exits)",
						Value: 5 * time.Minute,
					},
				),
			},
			{
				Name:   "ask",
				Usage:  "Ask a question about the device's ingested page",
				Action: askCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "device",
						Usage:    "Device ID from register",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "Question text",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "How long to wait for the answer (0 submits and exits)",
						Value: 3 * time.Minute,
					},
				),
			},
			{
				Name:   "reconcile",
				Usage:  "Fail processing rows abandoned by a crashed worker",
				Action: reconcileCommand,
				Flags: append(serviceFlags(),
					&cli.DurationFlag{
						Name:  "stuck-after",
						Usage: "Age at which a processing row counts as abandoned",
						Value: pagerag.DefaultStuckAfter,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// serviceFlags are shared by every command that opens the service.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "ai-host",
			Usage:   "OpenAI-compatible service host URL",
			EnvVars: []string{"PAGERAG_AI_HOST"},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"PAGERAG_EMBEDDING_MODEL"},
			Value:   "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "generation-model",
			Usage:   "Generation model name",
			EnvVars: []string{"PAGERAG_GENERATION_MODEL"},
			Value:   "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the AI service",
			EnvVars: []string{"PAGERAG_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "fingerprint-salt",
			Usage:   "Salt mixed into device fingerprints",
			EnvVars: []string{"PAGERAG_FINGERPRINT_SALT"},
		},
		&cli.BoolFlag{
			Name:  "mock-ai",
			Usage: "Use deterministic in-process AI instead of a real backend",
		},
	}
}

func openService(c *cli.Context, extra ...pagerag.ServiceOption) (*pagerag.Service, error) {
	opts := extra
	if c.Bool("mock-ai") {
		opts = append(opts, pagerag.WithProvider(mock.NewProvider(64)))
	} else {
		aiOpts := []ai.ConfigOption{
			ai.WithHost(c.String("ai-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithGenerationModel(c.String("generation-model")),
		}
		if key := c.String("api-key"); key != "" {
			aiOpts = append(aiOpts, ai.WithAPIKey(key))
		}
		config := ai.NewConfig(aiOpts...)
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, pagerag.WithAIConfig(config))
	}
	if salt := c.String("fingerprint-salt"); salt != "" {
		opts = append(opts, pagerag.WithFingerprintSalt(salt))
	}
	return pagerag.NewService(c.String("db"), opts...)
}

func registerCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	device, err := svc.RegisterDevice(context.Background(), c.String("model"), c.String("os"))
	if err != nil {
		return err
	}

	fmt.Printf("device:          %s\n", device.Id)
	fmt.Printf("quota remaining: %d\n", device.QuotaRemaining)
	return nil
}

func ingestCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	ingestion, err := svc.IngestURL(ctx, c.String("device"), c.String("url"))
	if err != nil {
		return err
	}
	fmt.Printf("ingestion: %s\n", ingestion.Id)

	wait := c.Duration("wait")
	if wait <= 0 {
		return nil
	}

	row, err := pollIngestion(ctx, svc, ingestion.Id, wait)
	if err != nil {
		return err
	}
	switch row.Status {
	case core.StatusSuccess:
		fmt.Printf("status: %s (%d chunks, %d tokens)\n", row.Status, row.ChunkCount, row.TokenCount)
	case core.StatusFailed:
		fmt.Printf("status: %s (%s: %s)\n", row.Status, row.ErrorCode, row.ErrorMessage)
	default:
		fmt.Printf("status: %s after %s, still processing\n", row.Status, wait)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	query, err := svc.SubmitQuery(ctx, c.String("device"), c.String("question"))
	if err != nil {
		return err
	}
	fmt.Printf("query: %s\n", query.Id)

	wait := c.Duration("wait")
	if wait <= 0 {
		return nil
	}

	row, err := pollQuery(ctx, svc, query.Id, wait)
	if err != nil {
		return err
	}
	switch row.Status {
	case core.StatusSuccess:
		fmt.Printf("\n%s\n\nSources:\n", row.Answer)
		for _, source := range row.Sources {
			fmt.Printf("  [%.2f] %s: %s\n", source.RelevanceScore, source.ChunkId, source.TextSnippet)
		}
	case core.StatusFailed:
		fmt.Printf("status: %s (%s: %s)\n", row.Status, row.ErrorCode, row.ErrorMessage)
	default:
		fmt.Printf("status: %s after %s, still processing\n", row.Status, wait)
	}
	return nil
}

func reconcileCommand(c *cli.Context) error {
	svc, err := openService(c, pagerag.WithStuckAfter(c.Duration("stuck-after")))
	if err != nil {
		return err
	}
	defer svc.Close()

	swept, err := svc.ReconcileStuck(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("swept %d abandoned rows\n", swept)
	return nil
}

func pollIngestion(ctx context.Context, svc *pagerag.Service, id string, wait time.Duration) (*core.Ingestion, error) {
	deadline := time.Now().Add(wait)
	for {
		row, err := svc.GetIngestion(ctx, id)
		if err != nil {
			return nil, err
		}
		if row.Status.IsTerminal() || time.Now().After(deadline) {
			return row, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func pollQuery(ctx context.Context, svc *pagerag.Service, id string, wait time.Duration) (*core.Query, error) {
	deadline := time.Now().Add(wait)
	for {
		row, err := svc.GetQuery(ctx, id)
		if err != nil {
			return nil, err
		}
		if row.Status.IsTerminal() || time.Now().After(deadline) {
			return row, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
