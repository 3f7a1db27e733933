// Command telwerk is the species alias matching service for field counts.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/config"
	"github.com/mboersen/telwerk/internal/health"
	"github.com/mboersen/telwerk/internal/index"
	"github.com/mboersen/telwerk/internal/logfile"
	"github.com/mboersen/telwerk/internal/match"
	"github.com/mboersen/telwerk/internal/match/auditlog"
	"github.com/mboersen/telwerk/internal/observe"
	"github.com/mboersen/telwerk/internal/store"
	"github.com/mboersen/telwerk/pkg/speech"
)

// version is stamped by the release build; "dev" for local builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "telwerk: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "telwerk: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, closeLog := logfile.Setup(cfg.Log)
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "telwerk: close log: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	slog.Info("telwerk starting",
		"version", version,
		"config", *configPath,
		"source", cfg.Index.SourcePath,
		"log_level", cfg.Log.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Species source and alias index ────────────────────────────────────────
	format := cfg.Index.SourceFormat
	if format == "" {
		format = config.FormatJSON
	}
	source, err := store.NewRegistry().Create(string(format), cfg.Index.SourcePath)
	if err != nil {
		slog.Error("failed to open species source", "err", err, "format", format)
		return 1
	}

	manager := index.NewManager(source,
		index.WithIndexPath(cfg.Index.IndexPath),
		index.WithQGramSize(cfg.Index.QGramSize),
		index.WithRebuildDebounce(msOrDefault(cfg.Index.RebuildDebounceMS, index.DefaultRebuildDebounce)),
		index.WithMetrics(metrics),
	)
	if err := manager.Load(ctx); err != nil {
		slog.Error("failed to load alias index", "err", err)
		return 1
	}
	defer func() {
		if err := manager.Close(); err != nil {
			slog.Warn("index close error", "err", err)
		}
	}()

	// ── Audit trail (optional) ────────────────────────────────────────────────
	var audit *auditlog.Logger
	if cfg.Audit.Dir != "" {
		var auditOpts []auditlog.Option
		if cfg.Audit.BufferSize > 0 {
			auditOpts = append(auditOpts, auditlog.WithBufferSize(cfg.Audit.BufferSize))
		}
		audit = auditlog.New(cfg.Audit.Dir, auditOpts...)
		defer audit.Close()
	}

	// ── Matching cascade ──────────────────────────────────────────────────────
	var fastOpts []match.FastPathOption
	if cfg.Matching.ExactConfidenceFloor > 0 {
		fastOpts = append(fastOpts, match.WithExactConfidenceFloor(cfg.Matching.ExactConfidenceFloor))
	}
	fast := match.NewFastPath(fastOpts...)

	var heavyOpts []match.HeavyOption
	if cfg.Matching.ASRWeight > 0 {
		heavyOpts = append(heavyOpts, match.WithASRWeight(cfg.Matching.ASRWeight))
	}
	if cfg.Matching.MaxHypotheses > 0 {
		heavyOpts = append(heavyOpts, match.WithMaxHypotheses(cfg.Matching.MaxHypotheses))
	}
	if cfg.Index.QGramSize > 0 {
		heavyOpts = append(heavyOpts, match.WithQGramSize(cfg.Index.QGramSize))
	}
	heavy := match.NewHeavyPath(heavyOpts...)

	pendingOpts := []match.PendingOption{
		match.WithPendingAudit(audit),
		match.WithPendingMetrics(metrics),
	}
	if cfg.Matching.PendingCapacity > 0 {
		pendingOpts = append(pendingOpts, match.WithPendingCapacity(cfg.Matching.PendingCapacity))
	}
	if cfg.Matching.PendingBudgetMS > 0 {
		pendingOpts = append(pendingOpts, match.WithPendingBudget(time.Duration(cfg.Matching.PendingBudgetMS)*time.Millisecond))
	}
	if cfg.Matching.AutoAcceptFloor > 0 || cfg.Matching.SuggestionFloor > 0 {
		pendingOpts = append(pendingOpts, match.WithPendingFloors(
			floorOrDefault(cfg.Matching.AutoAcceptFloor, match.DefaultAutoAcceptFloor),
			floorOrDefault(cfg.Matching.SuggestionFloor, match.DefaultSuggestionFloor),
		))
	}
	pending := match.NewPendingBuffer(heavy, manager.Current, pendingOpts...)

	state := newSessionState()
	pending.SetListener(func(res match.Result) {
		state.apply(res)
		fmt.Println()
		printResult(res)
		fmt.Print("> ")
	})
	pending.Start()
	defer pending.Close()

	parserOpts := []match.ParserOption{
		match.WithFastPath(fast),
		match.WithHeavyPath(heavy),
		match.WithPendingBuffer(pending),
		match.WithAuditLogger(audit),
		match.WithMetrics(metrics),
	}
	if cfg.Matching.InlineBudgetMS > 0 {
		parserOpts = append(parserOpts, match.WithInlineBudget(time.Duration(cfg.Matching.InlineBudgetMS)*time.Millisecond))
	}
	if cfg.Matching.AutoAcceptFloor > 0 || cfg.Matching.SuggestionFloor > 0 {
		parserOpts = append(parserOpts, match.WithFloors(
			floorOrDefault(cfg.Matching.AutoAcceptFloor, match.DefaultAutoAcceptFloor),
			floorOrDefault(cfg.Matching.SuggestionFloor, match.DefaultSuggestionFloor),
		))
	}
	if cfg.Matching.ASRWeight > 0 {
		parserOpts = append(parserOpts, match.WithParserASRWeight(cfg.Matching.ASRWeight))
	}
	parser := match.NewParser(manager.Current, parserOpts...)

	// ── Metrics and health endpoint (optional) ────────────────────────────────
	var srv *http.Server
	if cfg.Telemetry.ListenAddr != "" {
		checks := health.New(
			health.Checker{Name: "index", Check: func(context.Context) error {
				ix := manager.Current()
				if ix == nil || ix.Len() == 0 {
					return errors.New("alias index empty")
				}
				return nil
			}},
		)

		mux := http.NewServeMux()
		checks.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv = &http.Server{
			Addr:    cfg.Telemetry.ListenAddr,
			Handler: observe.Middleware(metrics)(mux),
		}
		go func() {
			slog.Info("telemetry endpoint listening", "addr", cfg.Telemetry.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("telemetry server error", "err", err)
			}
		}()
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.SourceChanged {
			slog.Info("species source changed, rebuilding index")
			if err := manager.Rebuild(ctx, "config"); err != nil {
				slog.Error("config-triggered rebuild failed", "err", err)
			}
		}
		if diff.LogLevelChanged || diff.MatchingChanged || diff.AuditChanged {
			slog.Warn("config change requires a restart to take effect",
				"log", diff.LogLevelChanged,
				"matching", diff.MatchingChanged,
				"audit", diff.AuditChanged,
			)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, manager.Current())

	// ── Field-test loop ───────────────────────────────────────────────────────
	slog.Info("ready — type an utterance, :help for commands, Ctrl+C to shut down")
	runLoop(ctx, parser, manager, state)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry server shutdown error", "err", err)
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Session state ─────────────────────────────────────────────────────────────

// maxRecents bounds the recency list used for tie-break boosts.
const maxRecents = 10

// sessionState mirrors the mobile client's session and tile state for the
// field-test loop. The pending-buffer listener mutates it concurrently with
// the input loop, hence the mutex.
type sessionState struct {
	mu      sync.Mutex
	tiles   map[string]struct{}
	site    map[string]struct{}
	session map[string]struct{}
	recents []string
}

func newSessionState() *sessionState {
	return &sessionState{
		tiles:   make(map[string]struct{}),
		site:    make(map[string]struct{}),
		session: make(map[string]struct{}),
	}
}

// context builds a fresh match.Context snapshot for one parse.
func (s *sessionState) context() *match.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	mctx := match.NewContext()
	for id := range s.tiles {
		mctx.Tiles[id] = struct{}{}
	}
	for id := range s.site {
		mctx.Site[id] = struct{}{}
	}
	for id := range s.session {
		mctx.Session[id] = struct{}{}
	}
	mctx.Recents = append([]string(nil), s.recents...)
	return mctx
}

// apply records an accepted result into the session and recency lists.
func (s *sessionState) apply(res match.Result) {
	if !res.Accepted() {
		return
	}
	id := res.Best().SpeciesID

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session[id] = struct{}{}
	recents := []string{id}
	for _, r := range s.recents {
		if r != id {
			recents = append(recents, r)
		}
	}
	if len(recents) > maxRecents {
		recents = recents[:maxRecents]
	}
	s.recents = recents
}

func (s *sessionState) setTiles(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.tiles[id] = struct{}{}
	}
}

func (s *sessionState) setSite(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.site = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.site[id] = struct{}{}
	}
}

// ── Input loop ────────────────────────────────────────────────────────────────

// runLoop reads utterances from stdin until EOF, ":quit", or ctx is
// cancelled. Each line is parsed as ranked hypotheses; lines starting with
// ":" are commands.
func runLoop(ctx context.Context, parser *match.Parser, manager *index.Manager, state *sessionState) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case strings.HasPrefix(line, ":"):
				if quit := command(ctx, line, manager, state); quit {
					return
				}
			default:
				mctx := state.context()
				res := parser.ParseHypotheses(ctx, parseUtterance(line), mctx)
				state.apply(res)
				printResult(res)
			}
			fmt.Print("> ")
		}
	}
}

// command handles a ":"-prefixed control line. Returns true when the loop
// should exit.
func command(ctx context.Context, line string, manager *index.Manager, state *sessionState) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":tile":
		state.setTiles(fields[1:])
		fmt.Printf("tiles: %v\n", fields[1:])
	case ":site":
		state.setSite(fields[1:])
		fmt.Printf("site: %v\n", fields[1:])
	case ":alias":
		if len(fields) < 3 {
			fmt.Println("usage: :alias <species-id> <alias text>")
			return false
		}
		rec, err := manager.AddUserAlias(ctx, fields[1], strings.Join(fields[2:], " "))
		if err != nil {
			fmt.Printf("alias rejected: %v\n", err)
			return false
		}
		fmt.Printf("alias %q added for %s\n", rec.Alias, rec.Canonical)
	case ":rebuild":
		if err := manager.Rebuild(ctx, "manual"); err != nil {
			fmt.Printf("rebuild failed: %v\n", err)
			return false
		}
		fmt.Printf("index rebuilt: %d aliases\n", manager.Current().Len())
	case ":help":
		fmt.Println("commands: :tile <ids>  :site <ids>  :alias <species-id> <text>  :rebuild  :quit")
		fmt.Println("utterance: text[@confidence], alternatives separated by |")
	default:
		fmt.Printf("unknown command %s (try :help)\n", fields[0])
	}
	return false
}

// parseUtterance splits a field-test input line into ranked hypotheses.
// Alternatives are separated by "|"; each may carry a trailing "@0.87"
// confidence. Confidence defaults to 1.0.
func parseUtterance(line string) []speech.Hypothesis {
	parts := strings.Split(line, "|")
	hyps := make([]speech.Hypothesis, 0, len(parts))
	for _, part := range parts {
		text := strings.TrimSpace(part)
		conf := 1.0
		if at := strings.LastIndex(text, "@"); at >= 0 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(text[at+1:]), 64); err == nil {
				conf = f
				text = strings.TrimSpace(text[:at])
			}
		}
		if text == "" {
			continue
		}
		hyps = append(hyps, speech.Hypothesis{Text: text, Confidence: conf})
	}
	return hyps
}

func printResult(res match.Result) {
	switch res.Kind {
	case match.KindNoMatch:
		fmt.Printf("no match for %q\n", res.Raw)
	case match.KindAutoAccept, match.KindAutoAcceptAddPopup:
		best := res.Best()
		popup := ""
		if res.Kind == match.KindAutoAcceptAddPopup {
			popup = " (new to session, confirm)"
		}
		fmt.Printf("accepted %s ×%d  score %.2f  via %s%s\n",
			best.DisplayName, best.Amount, best.Score, best.Source, popup)
	case match.KindSuggestionList, match.KindMultiMatch:
		fmt.Printf("%s:\n", res.Kind)
		for i, c := range res.Candidates {
			fmt.Printf("  %d. %s ×%d  score %.2f  via %s\n", i+1, c.DisplayName, c.Amount, c.Score, c.Source)
		}
	case match.KindDeferred:
		fmt.Printf("still working on %q…\n", res.Raw)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ix *alias.Index) {
	aliases := 0
	if ix != nil {
		aliases = ix.Len()
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Telwerk — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Catalog", cfg.Index.SourcePath)
	printRow("Format", string(cfg.Index.SourceFormat))
	printRow("Aliases", strconv.Itoa(aliases))
	if cfg.Index.IndexPath != "" {
		printRow("Index file", cfg.Index.IndexPath)
	} else {
		printRow("Index file", "(not persisted)")
	}
	if cfg.Audit.Dir != "" {
		printRow("Audit dir", cfg.Audit.Dir)
	} else {
		printRow("Audit dir", "(disabled)")
	}
	if cfg.Telemetry.ListenAddr != "" {
		printRow("Telemetry", cfg.Telemetry.ListenAddr)
	} else {
		printRow("Telemetry", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = "…" + value[len(value)-18:]
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func floorOrDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
