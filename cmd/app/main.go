package main

import (
	"flag"
	"log"
	"os"

	"CandleScope/internal/di"
	"CandleScope/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbols=%v", cfg.Environment, cfg.Stream.Symbols)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
