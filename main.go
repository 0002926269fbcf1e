// Package main runs froidapi, an unofficial REST API for farsroid.com.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"froidapi/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
