package main

import (
	"context"
	"os"

	"moodtunes-api-go/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	conf := config.Get()
	if level, err := log.ParseLevel(conf.Configuration.LogLevel); err == nil {
		log.SetLevel(level)
	}

	runner := NewRunner(RunnerOpts{Config: &conf})

	app := &cli.Command{
		Name:     "moodtunes",
		Usage:    "Search music, keep favorites and follow your agent's mood",
		Commands: runner.register(),
		Action:   runner.TUI,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
