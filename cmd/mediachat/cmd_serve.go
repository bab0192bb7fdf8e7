package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediachat/internal/app"
)

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to yaml config file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadServerConfig(serveConfigPath)
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel, cfg.LogJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	slog.Info("mediachat server listening",
		"addr", handle.Addr(),
		"upload_dir", cfg.UploadDir,
		"video_dir", cfg.VideoDir,
		"transcode_workers", cfg.TranscodeWorkers,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	cancel()
	return handle.Wait()
}
