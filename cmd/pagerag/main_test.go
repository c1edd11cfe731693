package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestServiceFlags(t *testing.T) {
	flags := serviceFlags()

	findString := func(name string) *cli.StringFlag {
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
				return f
			}
		}
		return nil
	}

	t.Run("db is required", func(t *testing.T) {
		dbFlag := findString("db")
		require.NotNil(t, dbFlag)
		assert.True(t, dbFlag.Required)
		assert.Contains(t, dbFlag.Aliases, "d")
	})

	t.Run("ai-host has local default", func(t *testing.T) {
		hostFlag := findString("ai-host")
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
		assert.Contains(t, hostFlag.EnvVars, "PAGERAG_AI_HOST")
	})

	t.Run("model flags have defaults", func(t *testing.T) {
		embedFlag := findString("embedding-model")
		require.NotNil(t, embedFlag)
		assert.NotEmpty(t, embedFlag.Value)

		genFlag := findString("generation-model")
		require.NotNil(t, genFlag)
		assert.NotEmpty(t, genFlag.Value)
	})

	t.Run("api-key comes from the environment", func(t *testing.T) {
		keyFlag := findString("api-key")
		require.NotNil(t, keyFlag)
		assert.Empty(t, keyFlag.Value)
		assert.Contains(t, keyFlag.EnvVars, "PAGERAG_API_KEY")
	})
}

func TestCommandValidation(t *testing.T) {
	newApp := func() *cli.App {
		return &cli.App{
			Name: "pagerag",
			Commands: []*cli.Command{
				{
					Name:   "ask",
					Action: askCommand,
					Flags: append(serviceFlags(),
						&cli.StringFlag{Name: "device", Required: true},
						&cli.StringFlag{Name: "question", Required: true},
					),
				},
			},
		}
	}

	t.Run("missing db flag fails", func(t *testing.T) {
		err := newApp().Run([]string{"pagerag", "ask", "--device", "x", "--question", "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("missing question flag fails", func(t *testing.T) {
		err := newApp().Run([]string{"pagerag", "ask", "--db", "/tmp/test", "--device", "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question")
	})
}

func TestSetupLogger(t *testing.T) {
	newApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}
		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				require.NoError(t, newApp().Run([]string{"test", "--log-level", tc.input}))
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				require.NoError(t, newApp().Run([]string{"test", "--log-level", tc}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newApp().Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		require.NoError(t, newApp().Run([]string{"test", "-l", "debug"}))
	})
}
