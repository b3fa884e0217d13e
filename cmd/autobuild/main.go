package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/k8ika0s/autobuild/internal/failure"
)

func main() {
	// Values already in the environment win over the .env file.
	envFile := os.Getenv("AUTOBUILD_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load %s: %v\n", envFile, err)
		os.Exit(2)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("autobuild"),
		kong.Description("Build the native modules selected by CXXFLAGS, then the root project."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := kctx.Run(&Globals{Ctx: ctx, Logger: slog.Default()})
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Operation interrupted by user")
		stop()
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, failure.Format(err))
	stop()
	os.Exit(failure.ExitCode(err))
}
