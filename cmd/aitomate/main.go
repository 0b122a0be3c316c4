package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/dvbondoy/aitomate/internal/transports/cli"
	"github.com/dvbondoy/aitomate/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	lg := logger.New(os.Getenv("LOG_LEVEL"))
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		lg.Warn("load .env", "err", err)
	}

	root := cli.New(buildVersion())
	if err := root.ExecuteContext(context.Background()); err != nil {
		lg.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
