package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/atimics/rati-sub002/pkg/agent"
	"github.com/atimics/rati-sub002/pkg/bus"
	"github.com/atimics/rati-sub002/pkg/config"
	"github.com/atimics/rati-sub002/pkg/heartbeat"
	"github.com/atimics/rati-sub002/pkg/ledger"
	"github.com/atimics/rati-sub002/pkg/logger"
	"github.com/atimics/rati-sub002/pkg/ranker"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "rati"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rati", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

// openLedger builds the ledger on the backend the config selects. Close the
// returned store when done.
func openLedger(cfg *config.Config) (*ledger.Ledger, ledger.Store, error) {
	var (
		store ledger.Store
		err   error
	)
	switch cfg.Ledger.Backend {
	case "", "file":
		store, err = ledger.NewFileStore(cfg.StatePath())
	case "sqlite":
		store, err = ledger.NewSQLiteStore(filepath.Join(cfg.StatePath(), "ledger.db"))
	case "memory":
		store = ledger.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger store: %w", err)
	}

	l := ledger.New(cfg.Agent.ID, store, ledger.Options{
		HistoryLimit: cfg.Ledger.HistoryLimit,
		Cooldown:     time.Duration(cfg.Ledger.CooldownMinutes) * time.Minute,
		HashWindow:   cfg.Ledger.HashWindow,
	})
	return l, store, nil
}

func newRanker(cfg *config.Config) (*ranker.Ranker, error) {
	if cfg.Ranker.CacheSeconds > 0 {
		return ranker.NewWithCache(time.Duration(cfg.Ranker.CacheSeconds) * time.Second)
	}
	return ranker.New(), nil
}

func rankerOptions(cfg *config.Config) ranker.Options {
	return ranker.Options{
		MaxMemories:          cfg.Ranker.MaxMemories,
		MinRelevanceScore:    cfg.Ranker.MinRelevanceScore,
		IncludeRecent:        cfg.Ranker.IncludeRecent,
		PreferHighImportance: cfg.Ranker.PreferHighImportance,
	}
}

// loadPool reads a JSON array of memory records, the format the recall and
// repl commands consume.
func loadPool(path string) ([]ranker.MemoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pool []ranker.MemoryRecord
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("parse memory pool %s: %w", path, err)
	}
	return pool, nil
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if err := os.MkdirAll(cfg.StatePath(), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	poolPath := filepath.Join(cfg.WorkspacePath(), "memories.json")
	if _, err := os.Stat(poolPath); os.IsNotExist(err) {
		if err := os.WriteFile(poolPath, []byte("[]\n"), 0644); err != nil {
			return fmt.Errorf("create memory pool: %w", err)
		}
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Tune", configPath)
	fmt.Println("  2. Add memories to", poolPath)
	fmt.Println("  3. Check readiness: rati status")
	fmt.Println("  4. Try recall: rati recall -m \"gm farcaster\"")
	fmt.Println("  5. Run the agent: rati run")
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Printf("Build: %s\n", build)
	}
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗")
	}

	workspace := cfg.WorkspacePath()
	if _, err := os.Stat(workspace); err == nil {
		fmt.Println("Workspace:", workspace, "✓")
	} else {
		fmt.Println("Workspace:", workspace, "✗")
	}

	fmt.Printf("Agent: %s\n", cfg.Agent.ID)
	fmt.Printf("Ledger backend: %s\n", cfg.Ledger.Backend)
	fmt.Printf("Heartbeat: enabled=%v schedule=%q\n", cfg.Heartbeat.Enabled, cfg.Heartbeat.Schedule)

	l, store, err := openLedger(cfg)
	if err != nil {
		fmt.Println("Ledger:", err)
		return nil
	}
	defer store.Close()

	activity := l.Activity()
	if activity.LastSuccessAt.IsZero() {
		fmt.Println("Last success: never")
	} else {
		fmt.Printf("Last success: %s\n", activity.LastSuccessAt.Format(time.RFC3339))
	}
	fmt.Printf("Actions retained: %d\n", len(l.RecentHistory(0)))
	return nil
}

func historyCmd(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records := l.RecentHistory(limit)
	if len(records) == 0 {
		fmt.Println("No actions recorded.")
		return nil
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  #%d %s %s", rec.Timestamp.Format(time.RFC3339), rec.Sequence, rec.Action, rec.Status)
		if rec.Target != "" {
			line += " target=" + rec.Target
		}
		if rec.Error != "" {
			line += " error=" + rec.Error
		}
		fmt.Println(line)
	}
	return nil
}

func recallCmd(message, poolPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if poolPath == "" {
		poolPath = filepath.Join(cfg.WorkspacePath(), "memories.json")
	}
	pool, err := loadPool(poolPath)
	if err != nil {
		return err
	}

	r, err := newRanker(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	res := r.RelevantContext(
		[]ranker.Message{{Content: message, Timestamp: time.Now()}},
		pool,
		rankerOptions(cfg),
	)

	fmt.Println(res.ContextString)
	if len(res.Memories) > 0 {
		fmt.Printf("\n(%d of %d considered", len(res.Memories), res.TotalConsidered)
		if res.Fallback {
			fmt.Print(", fallback ranking")
		}
		fmt.Println(")")
	}
	return nil
}

func replCmd(poolPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if poolPath == "" {
		poolPath = filepath.Join(cfg.WorkspacePath(), "memories.json")
	}
	pool, err := loadPool(poolPath)
	if err != nil {
		return err
	}

	l, store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := newRanker(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	assembler := agent.NewAssembler(cfg.Agent.ID, cfg.Agent.Persona, l)

	sessionID := uuid.NewString()
	logger.InfoCF("repl", "Session started",
		map[string]interface{}{"session_id": sessionID, "pool_size": len(pool)})
	fmt.Printf("%s Interactive recall (Ctrl+C to exit, %d memories loaded)\n\n", appName, len(pool))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".rati_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		res := r.RelevantContext(
			[]ranker.Message{{Content: input, Timestamp: time.Now()}},
			pool,
			rankerOptions(cfg),
		)
		prompt := assembler.Assemble(res, input, time.Now())
		fmt.Printf("\n%s\n\n", prompt)
	}
}

func runCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := loadPool(filepath.Join(cfg.WorkspacePath(), "memories.json"))
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		pool = nil
	}

	l, store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := newRanker(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	msgBus := bus.NewMessageBus()
	gate := agent.NewGate(l)
	assembler := agent.NewAssembler(cfg.Agent.ID, cfg.Agent.Persona, l)

	hb, err := heartbeat.NewService(cfg.Heartbeat.Schedule, cfg.Heartbeat.Enabled, msgBus, l)
	if err != nil {
		return err
	}
	if err := hb.Start(); err != nil {
		return err
	}
	fmt.Println("✓ Heartbeat service started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumeActions(ctx, msgBus, gate, l)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		cancel()
	}()

	fmt.Printf("✓ %s running (agent %s)\n", appName, cfg.Agent.ID)
	fmt.Println("Press Ctrl+C to stop")

	for {
		ev, ok := msgBus.ConsumeEvent(ctx)
		if !ok {
			break
		}
		handleEvent(ctx, ev, l, r, assembler, pool, rankerOptions(cfg))
	}

	hb.Stop()
	msgBus.Close()
	fmt.Println("Stopped.")
	return nil
}

// handleEvent runs one decision turn: dedupe the message, recall memories,
// assemble the prompt. Dispatching the resulting action is the platform
// adapter's job.
func handleEvent(ctx context.Context, ev bus.PlatformEvent, l *ledger.Ledger, r *ranker.Ranker, assembler *agent.Assembler, pool []ranker.MemoryRecord, opts ranker.Options) {
	if ev.MessageID != "" && l.IsProcessed(ev.MessageID) {
		logger.DebugCF("run", "Skipping already processed message",
			map[string]interface{}{"message_id": ev.MessageID})
		return
	}

	res := r.RelevantContext(
		[]ranker.Message{{Sender: ev.Sender, Content: ev.Content, Timestamp: ev.Received}},
		pool,
		opts,
	)
	prompt := assembler.Assemble(res, ev.Content, time.Now())

	logger.InfoCF("run", "Decision turn assembled",
		map[string]interface{}{
			"platform":     ev.Platform,
			"message_id":   ev.MessageID,
			"recalled":     len(res.Memories),
			"prompt_chars": len(prompt),
		})

	if ev.MessageID != "" {
		l.MarkProcessed(ctx, ev.MessageID)
	}
}

// consumeActions drains action requests, gates them, and hands permitted ones
// to the registered platform dispatcher.
func consumeActions(ctx context.Context, msgBus *bus.MessageBus, gate *agent.Gate, l *ledger.Ledger) {
	for {
		req, ok := msgBus.ConsumeAction(ctx)
		if !ok {
			return
		}

		decision := gate.Permit(ctx, req.Action, req.Target, req.Content)
		if !decision.Allowed {
			logger.InfoCF("run", "Action blocked",
				map[string]interface{}{"action": req.Action, "target": req.Target, "reason": decision.Reason})
			continue
		}

		dispatcher, ok := msgBus.GetDispatcher(req.Platform)
		if !ok {
			logger.WarnCF("run", "No dispatcher for platform",
				map[string]interface{}{"platform": req.Platform, "action": req.Action})
			continue
		}

		execErr := dispatcher(req)
		status := ledger.StatusSuccess
		if execErr != nil {
			status = ledger.StatusAPIError
		}
		if _, err := gate.Report(ctx, req.Action, req.Target, req.Content, nil, status, execErr); err != nil {
			logger.ErrorCF("run", "Failed to record action outcome",
				map[string]interface{}{"action": req.Action, "error": err.Error()})
		}
	}
}

func parseLimitArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return n, nil
}
