package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/mila/internal/backup"
	"github.com/dukerupert/mila/internal/config"
	"github.com/dukerupert/mila/internal/database"
	"github.com/dukerupert/mila/internal/email"
	"github.com/dukerupert/mila/internal/logging"
	"github.com/dukerupert/mila/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	restoreKey := flag.String("restore", "", "restore the database from this backup key and exit")
	listBackups := flag.Bool("list-backups", false, "list uploaded backups and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting mila", "environment", cfg.App.Environment)

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
		Interval:   cfg.Backup.Interval,
		Retention:  cfg.Backup.Retention,
	}

	if *listBackups || *restoreKey != "" {
		os.Exit(runBackupCommand(backupCfg, cfg.Database.Path, *restoreKey, logger))
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var emailOpts []email.Option
	if cfg.Email.APIURL != "" {
		emailOpts = append(emailOpts, email.WithAPIURL(cfg.Email.APIURL))
	}
	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, emailOpts...)
	if !emailClient.Configured() {
		logger.Warn("postmark token not set, auth mails are disabled")
	}
	if !cfg.Billing.Enabled() {
		logger.Info("stripe key not set, premium upgrades are disabled")
	}

	backups := backup.NewManager(backupCfg, db, logger.With("component", "backup"))
	if !backups.Enabled() {
		logger.Info("backups disabled, bucket, credentials or passphrase not set")
	}

	srv, err := server.New(db, cfg, emailClient, logger)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	backups.Start(cleanupCtx)
	go func() {
		ticker := time.NewTicker(cfg.Cleanup.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.Cleanup(cleanupCtx)
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("mila listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	backups.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// runBackupCommand lists backups or restores one into dbPath. The server must
// not be running against dbPath during a restore.
func runBackupCommand(cfg backup.Config, dbPath, restoreKey string, logger *slog.Logger) int {
	m := backup.NewManager(cfg, nil, logger.With("component", "backup"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if restoreKey == "" {
		snaps, err := m.List(ctx)
		if err != nil {
			logger.Error("list backups", "error", err)
			return 1
		}
		for _, snap := range snaps {
			fmt.Printf("%s\t%d\t%s\n", snap.CreatedAt.Format(time.RFC3339), snap.Size, snap.Key)
		}
		return 0
	}

	if err := m.Restore(ctx, restoreKey, dbPath); err != nil {
		logger.Error("restore backup", "key", restoreKey, "error", err)
		return 1
	}
	logger.Info("database restored", "key", restoreKey, "path", dbPath)
	return 0
}
