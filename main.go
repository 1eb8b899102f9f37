package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oqzl/grokchat/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(cmd.Report(os.Stderr, err))
}
