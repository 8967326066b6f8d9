// Package main provides the workoutai binary: the HTTP service plus the
// ingest and maintenance commands around it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "workoutai"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Workout plan generation service",
		Long: `WorkoutAI retrieves similar workouts from an embedded corpus and uses
a language model to generate and adapt multi-week training plans.

Run "serve" to start the HTTP API and "ingest" to embed a SugarWOD export
into the workout store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(&flags),
		ingestCmd(&flags),
		searchCmd(&flags),
		checkCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.serve()
		},
	}
}

func ingestCmd(flags *globalFlags) *cobra.Command {
	var dir, tracksPath string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed a SugarWOD export and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tracksPath == "" {
				tracksPath = filepath.Join(dir, "tracks.json")
			}
			app, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.ingest(cmd.Context(), dir, tracksPath)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "sugarwod", "Directory holding workouts*.json files")
	cmd.Flags().StringVar(&tracksPath, "tracks", "", "Track id to name mapping (default <dir>/tracks.json)")
	return cmd
}

func searchCmd(flags *globalFlags) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the workouts most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.loadIndex(cmd.Context()); err != nil {
				return err
			}
			results, err := app.retriever.Search(cmd.Context(), args[0], topK)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results")
	return cmd
}

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored corpus matches the embedding model",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.loadIndex(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), app.cfg.Embedding.Timeout)
			defer cancel()
			if err := app.retriever.CheckDimension(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "corpus ok: %d workouts\n", app.index.Len())
			return nil
		},
	}
}
