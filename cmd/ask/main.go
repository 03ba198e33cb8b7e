package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/app"
	"github.com/seanblong/orgsearch/internal/config"
	"github.com/seanblong/orgsearch/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("orgsearch-ask", pflag.ExitOnError)

	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	// Answers go to stdout, so logs go to stderr.
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	stats, err := a.Analyze(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("analysis failed")
	}
	fmt.Fprintf(os.Stderr, "Analyzed %d repositories (%d files, %d lines) into %d documents in %s\n",
		stats.Repositories, stats.Files, stats.Lines, stats.Documents, stats.Duration.Round(time.Millisecond))

	if qs := fs.Args(); len(qs) > 0 {
		answer(ctx, a, os.Stdout, strings.Join(qs, " "))
		return
	}

	sc := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stderr, "> ")
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			answer(ctx, a, os.Stdout, q)
		}
		fmt.Fprint(os.Stderr, "> ")
	}
	if err := sc.Err(); err != nil {
		zlog.Error().Err(err).Msg("reading questions")
	}
}

func answer(ctx context.Context, a *app.App, w io.Writer, q string) {
	res, err := a.Ask(ctx, q)
	if err != nil {
		zlog.Error().Err(err).Str("q", q).Msg("question failed")
		return
	}
	printResult(w, res)
}

func printResult(w io.Writer, res models.QueryResult) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range res.Sources {
		fmt.Fprintf(w, "  [%s] %s\n", s.Repo, s.Snippet)
	}
	fmt.Fprintln(w)
}
