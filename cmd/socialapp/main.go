package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/socialapp/backend/internal/app"
)

const usage = `usage: socialapp <command> [args]

commands:
  serve                 run the HTTP API
  migrate [up|status]   apply or list database migrations
  seed [count]          create sample users and friendships`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "socialapp:", err)
		stop()
		os.Exit(1)
	}
}
