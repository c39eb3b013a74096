package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/importer"
	"storefront/internal/logger"
	productrepo "storefront/internal/repository/product"
	"storefront/internal/service/catalog"
	"storefront/internal/storage"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product CSV (id,name,description,price,category,stock,image_url)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Component: "importer"})
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open file")
	}
	defer f.Close()

	catalogSvc := catalog.New(productrepo.NewPostgres(pool, &log), storage.NewLocalStorage(cfg.StoragePath, cfg.FileURLHost), &log)
	imp := importer.NewCSVImporter(f, catalogSvc, &log)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("imported", count).Msg("import failed")
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
