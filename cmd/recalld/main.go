// Package main runs recalld, the conversational memory service. It wires
// the conversation store, the memory update scheduler, context selection,
// and the HTTP transport together and serves until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parchmentlabs/recall/pkg/chat"
	"github.com/parchmentlabs/recall/pkg/config"
	"github.com/parchmentlabs/recall/pkg/importer"
	"github.com/parchmentlabs/recall/pkg/llm/anthropic"
	"github.com/parchmentlabs/recall/pkg/llm/openai"
	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/memory"
	"github.com/parchmentlabs/recall/pkg/selection"
	"github.com/parchmentlabs/recall/pkg/server"
	"github.com/parchmentlabs/recall/pkg/store"
)

const version = "0.1.0"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml (default ~/.recall/config.yaml)")
		addr        = flag.String("addr", "", "listen address override")
		seedPath    = flag.String("seed", "", "ChatGPT-export conversations.json to import at startup")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("recalld v%s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *seedPath != "" {
		cfg.Server.SeedPath = *seedPath
	}
	if cfg.Logging.Directory != "" {
		logging.SetDirectory(cfg.Logging.Directory)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("recalld: %v", err)
	}
}

func run(cfg *config.Config) error {
	mainLog, err := logging.NewLogger("main")
	if err != nil {
		mainLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
	mainLog.Infof("recalld v%s starting, session %s", version, logging.SessionID())

	openaiOpts := []openai.ProviderOption{openai.WithModel(cfg.Models.StructuredModel)}
	if cfg.Models.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.Models.OpenAIBaseURL))
	}
	structured, err := openai.NewProvider("", openaiOpts...)
	if err != nil {
		return fmt.Errorf("structured provider: %w", err)
	}

	replier := anthropic.NewProvider("",
		anthropic.WithModel(cfg.Models.ReplyModel),
		anthropic.WithMaxTokens(cfg.Models.ReplyMaxTokens),
	)

	st := store.New()
	sched := memory.NewScheduler(st, memory.NewLLMSummarizer(structured),
		memory.WithUpdateTimeout(cfg.Memory.UpdateTimeout.Std()),
	)
	sel := selection.NewSelector(selection.NewLLMJudge(structured),
		selection.WithMaxSelections(cfg.Selection.MaxSelections),
		selection.WithCacheTTL(cfg.Selection.CacheTTL.Std()),
	)
	cons := memory.NewConsolidator(memory.NewLLMMerger(structured),
		memory.WithDigestTokens(cfg.Memory.DigestTokens),
		memory.WithRecentTurns(cfg.Memory.RecentTurns),
	)
	service := chat.NewService(st, sched, sel, cons,
		chat.NewTitleGenerator(structured), replier,
		chat.WithHistoryWindow(cfg.Chat.HistoryWindow),
	)

	if cfg.Server.SeedPath != "" {
		n, err := importer.Seed(st, sched, cfg.Server.SeedPath)
		if err != nil {
			return fmt.Errorf("seed conversations: %w", err)
		}
		mainLog.Infof("imported %d conversations from %s", n, cfg.Server.SeedPath)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(service).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		mainLog.Infof("listening on %s", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		mainLog.Infof("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLog.Warnf("http shutdown: %v", err)
	}

	// Let in-flight memory updates land before the process exits.
	service.AwaitUpdates()
	mainLog.Infof("shutdown complete")
	return nil
}
