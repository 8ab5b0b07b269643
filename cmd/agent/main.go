package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/petasbytes/recall-agent/internal/agent"
	"github.com/petasbytes/recall-agent/internal/attach"
	"github.com/petasbytes/recall-agent/internal/config"
	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/logger"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/provider"
	"github.com/petasbytes/recall-agent/internal/runner"
	"github.com/petasbytes/recall-agent/internal/savequeue"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/internal/windowing"
	"github.com/petasbytes/recall-agent/memory"
)

func main() {
	// Basic env check (SDK also reads API key)
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Println("Missing ANTHROPIC_API_KEY; export it before running.")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("agent exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	restoreTelemetry := telemetry.Configure(cfg.Telemetry())
	defer restoreTelemetry()
	windowing.SetVerbose(cfg.VerboseWindow)

	store, err := memory.Open(cfg.DataDir,
		memory.WithDefaults(cfg.Memory),
		memory.WithProcessors(windowing.NewTokenLimiter(cfg.MemoryTokenLimit)),
		memory.WithLogger(log),
		memory.WithThreadCacheSize(cfg.ThreadCacheSize),
	)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close memory")
		}
	}()

	shutdown, err := telemetry.SetupTracing(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("shutdown tracing")
		}
	}()

	sandbox, err := attach.NewSandbox(cfg.AttachRoot)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	queue := savequeue.New(store,
		savequeue.WithDebounce(cfg.SaveDebounce),
		savequeue.WithMaxStaleness(cfg.SaveMaxStaleness),
		savequeue.WithLogger(log),
	)
	model := runner.New(provider.NewAnthropicClient(), provider.Model(cfg.Model),
		runner.WithTokenBudget(cfg.TokenBudget),
		runner.WithMaxTokens(cfg.MaxTokens),
		runner.WithLogger(log),
		runner.WithTiers(map[string]anthropic.Model{
			runner.TierAdvanced:  anthropic.Model(cfg.ModelAdvanced),
			runner.TierEfficient: anthropic.Model(cfg.ModelEfficient),
			runner.TierReasoning: anthropic.Model(cfg.ModelReasoning),
		}),
	)
	a := agent.New(cfg.AgentName, cfg.Instructions, model,
		agent.WithMemory(store),
		agent.WithQueue(queue),
		agent.WithTools(model.SwitchTool()),
		agent.WithMemoryConfig(cfg.Memory),
		agent.WithMaxSteps(cfg.MaxSteps),
		agent.WithLogger(log),
	)

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	s := &session{
		cfg:      cfg,
		agent:    a,
		store:    store,
		queue:    queue,
		sandbox:  sandbox,
		threadID: cfg.ThreadID,
	}
	if s.threadID == "" {
		s.threadID = uuid.NewString()
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Chat with %s (thread %s, Ctrl-C to quit, /help for commands)\n", cfg.AgentName, s.threadID)

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case line, ok = <-inputCh:
			if !ok {
				break outer
			}
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			s.command(ctx, line)
			continue
		}
		s.send(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stdin read error: %v\n", err)
	}

	// Drain any debounced save for the current thread before exiting.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	return queue.Wait(waitCtx, s.threadID)
}

// session is the REPL state: the active thread and files staged for the
// next message.
type session struct {
	cfg      *config.Config
	agent    *agent.Agent
	store    *memory.Store
	queue    *savequeue.Manager
	sandbox  *attach.Sandbox
	threadID string
	staged   []string
}

func (s *session) send(ctx context.Context, text string) {
	var input any = text
	if len(s.staged) > 0 {
		m, err := s.sandbox.Message(text, s.staged...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		input = m
		s.staged = nil
	}

	res, err := s.agent.Stream(ctx, input, agent.Options{
		ThreadID:    s.threadID,
		ResourceID:  s.cfg.ResourceID,
		SavePerStep: s.cfg.SavePerStep,
		OnStepFinish: func(_ context.Context, step agent.StepResult) error {
			for _, m := range step.Messages {
				printToolCalls(m)
			}
			return nil
		},
	})
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			fmt.Fprintf(os.Stderr, "error [%s]: %s\n", e.Code, e.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return
	}
	if strings.TrimSpace(res.Text) != "" {
		fmt.Printf("\u001b[93m%s\u001b[0m: %s\n", s.cfg.AgentName, res.Text)
	}
	if res.Title != "" {
		fmt.Printf("(thread titled %q)\n", res.Title)
	}
}

func printToolCalls(m message.CoreMessage) {
	for _, p := range m.Content.Parts {
		if p.Type == message.CoreToolCall {
			fmt.Printf("\u001b[92mtool\u001b[0m: %s(%s)\n", p.ToolName, p.Args)
		}
	}
}

func (s *session) command(ctx context.Context, line string) {
	fields := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	switch fields[0] {
	case "/help":
		fmt.Println("/attach <path>  stage a file for the next message")
		fmt.Println("/files [dir]    list files under the attachment root")
		fmt.Println("/threads        list your threads")
		fmt.Println("/switch <id>    continue another thread")
		fmt.Println("/new            start a new thread")
		fmt.Println("/forget [all]   delete this thread, or every thread and memory")
	case "/attach":
		if arg == "" {
			fmt.Println("usage: /attach <path>")
			return
		}
		if _, err := s.sandbox.File(arg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		s.staged = append(s.staged, arg)
		fmt.Printf("staged %s (%d file(s) pending)\n", arg, len(s.staged))
	case "/files":
		names, err := s.sandbox.List(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "/threads":
		threads, err := s.store.ListThreads(ctx, s.cfg.ResourceID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		for _, th := range threads {
			marker := " "
			if th.ID == s.threadID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, th.ID, th.UpdatedAt.Local().Format(time.DateTime), th.Title)
		}
	case "/switch":
		if arg == "" {
			fmt.Println("usage: /switch <thread-id>")
			return
		}
		s.threadID = arg
		fmt.Printf("thread %s\n", s.threadID)
	case "/new":
		s.threadID = uuid.NewString()
		s.staged = nil
		fmt.Printf("thread %s\n", s.threadID)
	case "/forget":
		threadID := s.threadID
		if arg == "all" {
			threadID = ""
		}
		// a debounced save would recreate the thread
		if err := s.queue.Wait(ctx, s.threadID); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if err := s.store.ClearMemories(ctx, s.cfg.ResourceID, threadID); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if threadID == "" {
			fmt.Println("forgot every thread and saved memory")
		} else {
			fmt.Printf("forgot thread %s\n", threadID)
		}
		s.threadID = uuid.NewString()
		s.staged = nil
		fmt.Printf("thread %s\n", s.threadID)
	default:
		fmt.Printf("unknown command %s; try /help\n", fields[0])
	}
}
