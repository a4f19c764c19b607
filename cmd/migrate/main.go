package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"research-showcase-api/config"
	"research-showcase-api/models"
)

func main() {
	cfg := config.MustLoad()
	log, err := config.InitLogging(cfg.LogLevel, cfg.LogFormat, "")
	if err != nil {
		panic(err)
	}
	defer config.SyncLogging()

	if err := config.InitDB(context.Background(), cfg); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := config.DB.AutoMigrate(models.All()...); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
