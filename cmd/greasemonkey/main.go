package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/config"
	"github.com/brunoamorim39/greasemonkey-ai/internal/db"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "greasemonkey",
		Short:         "greasemonkey backend server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newMigrateCmd(&configPath),
		newIngestCmd(&configPath),
		newOverrideCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	if err := model.ValidatePolicies(); err != nil {
		return nil, err
	}
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the http server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServer(cfg, app)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logutil.GetLogger(cmd.Context()).Info("migrations applied")
			return nil
		},
	}
}

func newIngestCmd(configPath *string) *cobra.Command {
	var (
		file         string
		title        string
		docType      string
		vehicleMake  string
		vehicleModel string
		year         int
		tags         string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "index a markdown or text manual into the shared collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			typ, err := model.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read manual: %w", err)
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}
			doc, err := app.documents.IngestSystem(cmd.Context(), service.DocumentInput{
				Title:        title,
				Filename:     filepath.Base(file),
				DocumentType: typ,
				Vehicle:      model.VehicleInfo{Make: vehicleMake, Model: vehicleModel, Year: year},
				Tags:         splitList(tags),
				Content:      content,
			})
			if err != nil {
				return err
			}
			logutil.GetLogger(cmd.Context()).Info("manual ingested",
				zap.String("document_id", doc.ID),
				zap.String("title", doc.Title),
				zap.Int("chunks", doc.ChunkCount),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the manual")
	cmd.Flags().StringVar(&title, "title", "", "document title, defaults to the file name")
	cmd.Flags().StringVar(&docType, "type", string(model.DocumentTypeFSMOfficial), "document type")
	cmd.Flags().StringVar(&vehicleMake, "make", "", "vehicle make")
	cmd.Flags().StringVar(&vehicleModel, "model", "", "vehicle model")
	cmd.Flags().IntVar(&year, "year", 0, "vehicle year")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	return cmd
}

func newOverrideCmd(configPath *string) *cobra.Command {
	var (
		userID string
		tier   string
		hours  int
		reason string
	)
	cmd := &cobra.Command{
		Use:   "override",
		Short: "grant a user a temporary tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			t, err := model.ParseTier(tier)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			o, err := app.resolver.SetOverride(cmd.Context(), userID, t, time.Duration(hours)*time.Hour, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "override %s: %s is %s until %s\n",
				o.ID, o.UserID, o.Tier.DisplayName(), time.Unix(o.ExpiresAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tier, "tier", "", "garage_visitor, gearhead or master_tech")
	cmd.Flags().IntVar(&hours, "hours", 0, "override lifetime in hours, 0 uses usage.override_ttl_hours")
	cmd.Flags().StringVar(&reason, "reason", "cli", "audit note")
	return cmd
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
