package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"todoTracker/internal/app"
	"todoTracker/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := "config.yml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("конфигурация: %v", err)
	}

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		log.Fatalf("инициализация: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("работа сервера: %v", err)
	}
}
