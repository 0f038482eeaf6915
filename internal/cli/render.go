package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/uispec/internal/catalog"
	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/metrics"
	"github.com/roach88/uispec/internal/source"
	"github.com/roach88/uispec/internal/store"
	"github.com/roach88/uispec/internal/visibility"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Catalog     string
	Strict      bool
	Stream      string
	Follow      bool
	Idle        time.Duration
	NATSURL     string
	Subject     string
	Data        string
	SignedIn    bool
	Database    string
	Session     string
	Malformed   string
	Confirm     string
	MaxElements int
	MaxPatches  int
	MetricsAddr string
}

// RenderReport is the JSON payload of the render command.
type RenderReport struct {
	Session     string           `json:"session"`
	State       string           `json:"state"`
	Seq         int64            `json:"seq"`
	SpecHash    string           `json:"spec_hash"`
	Resumed     int64            `json:"resumed,omitempty"`
	Tree        *NodeView        `json:"tree"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
}

// NodeView is one rendered node in JSON output.
type NodeView struct {
	Key       string      `json:"key"`
	Type      string      `json:"type"`
	RenderKey string      `json:"render_key"`
	Props     ir.Object   `json:"props,omitempty"`
	Actions   []string    `json:"actions,omitempty"`
	Fallback  bool        `json:"fallback,omitempty"`
	Children  []*NodeView `json:"children,omitempty"`
}

// DiagnosticView is one engine diagnostic in JSON output.
type DiagnosticView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Element string `json:"element,omitempty"`
	Path    string `json:"path,omitempty"`
	Action  string `json:"action,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Apply a patch stream and print the rendered tree",
		Long: `Apply a JSONL patch stream to an empty tree, settle it, and print the
visible tree with every diagnostic raised along the way.

Frames come from a file (--stream), a file still being written (--stream
with --follow), or a NATS subject (--nats-url with --subject). With --db
every applied patch is journaled under --session; rendering an existing
session resumes it and skips the patches the journal already holds.

Exit codes:
  0 - Stream settled (diagnostics do not fail the command)
  1 - Stream aborted
  2 - Command error (bad flags, catalog or stream not found, etc.)

Examples:
  uispec render --catalog ./catalog --stream ui.jsonl
  uispec render --catalog ./catalog --stream ui.jsonl --data data.yaml --signed-in
  uispec render --stream ui.jsonl --follow --db ./uispec.db --session s1
  uispec render --nats-url nats://localhost:4222 --subject ui.patches --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Catalog, "catalog", "", "catalog directory (CUE package)")
	f.BoolVar(&opts.Strict, "strict", false, "reject props and params the catalog does not declare")
	f.StringVar(&opts.Stream, "stream", "", "JSONL patch stream file")
	f.BoolVar(&opts.Follow, "follow", false, "keep reading the stream file as it grows")
	f.DurationVar(&opts.Idle, "idle", 0, "with --follow, settle after this long without new frames")
	f.StringVar(&opts.NATSURL, "nats-url", "", "read frames from a NATS server")
	f.StringVar(&opts.Subject, "subject", "", "NATS subject carrying the frames")
	f.StringVar(&opts.Data, "data", "", "initial data model (YAML or JSON file)")
	f.BoolVar(&opts.SignedIn, "signed-in", false, "evaluate auth conditions as signed in")
	f.StringVar(&opts.Database, "db", "", "journal patches to this SQLite database")
	f.StringVar(&opts.Session, "session", "", "session ID (default: a new UUIDv7)")
	f.StringVar(&opts.Malformed, "malformed", "", "malformed frame policy (skip|abort)")
	f.StringVar(&opts.Confirm, "confirm", "", "second confirmation policy (replace|queue|reject)")
	f.IntVar(&opts.MaxElements, "max-elements", engine.DefaultMaxElements, "element limit (0 disables)")
	f.IntVar(&opts.MaxPatches, "max-patches", engine.DefaultMaxPatches, "patch limit (0 disables)")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while rendering")

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := checkRenderSource(opts); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	logger := newLogger(formatter)
	sessOpts, err := renderSessionOptions(opts, formatter)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collectors, err := metrics.New(reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to register metrics", err)
	}
	sessOpts = append(sessOpts, engine.WithMetrics(collectors), engine.WithLogger(logger))
	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, reg, logger)
		defer stop()
		formatter.VerboseLog("Serving metrics on %s/metrics", opts.MetricsAddr)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
		}
		defer st.Close()
		sessOpts = append(sessOpts, engine.WithJournal(st))
	}
	if opts.Session != "" {
		sessOpts = append(sessOpts, engine.WithSessionID(opts.Session))
	}

	sess := engine.NewSession(sessOpts...)
	if opts.SignedIn {
		sess.SetAuth(&visibility.AuthState{SignedIn: true})
	}

	var resumed int64
	if st != nil && opts.Session != "" {
		resumed, err = resumeSession(ctx, st, sess)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to resume session", err)
		}
		if resumed > 0 {
			formatter.VerboseLog("Resumed session %s at seq %d", sess.ID(), resumed)
		}
	}

	src, closeSrc, err := openRenderSource(opts, logger)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(ExitCommandError, code, "failed to open stream", err)
	}
	defer closeSrc()

	// An interrupt ends a live source cleanly: it closes the source, which
	// then reports end of stream and the tree settles.
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	go func() {
		<-sigCtx.Done()
		if ctx.Err() == nil {
			closeSrc()
		}
	}()

	consumeErr := sess.Consume(ctx, src)
	if snap := sess.Tree().Snapshot(); st != nil && snap.Seq > 0 && sess.Stream().State() == engine.StateSettled {
		hash, err := ir.SpecHash(snap.Spec)
		if err == nil {
			err = st.SetSpecHash(ctx, sess.ID(), hash)
		}
		if err != nil {
			logger.Error("failed to record spec hash", "session", sess.ID(), "error", err)
		}
	}

	report := buildRenderReport(sess, resumed)
	if err := outputRender(formatter, report, sess, consumeErr); err != nil {
		return err
	}
	if consumeErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s: stream aborted", ErrCodeStream), consumeErr)
	}
	return nil
}

// checkRenderSource requires exactly one frame source.
func checkRenderSource(opts *RenderOptions) error {
	switch {
	case opts.Stream != "" && opts.NATSURL != "":
		return errors.New("--stream and --nats-url are mutually exclusive")
	case opts.Stream == "" && opts.NATSURL == "":
		return errors.New("one of --stream or --nats-url is required")
	case opts.NATSURL != "" && opts.Subject == "":
		return errors.New("--nats-url requires --subject")
	case opts.NATSURL != "" && opts.Follow:
		return errors.New("--follow applies to --stream only")
	}
	return nil
}

// newLogger writes engine logs to stderr: warnings by default, everything
// with --verbose.
func newLogger(formatter *OutputFormatter) *slog.Logger {
	level := slog.LevelWarn
	if formatter.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{Level: level}))
}

// renderSessionOptions turns flags into session options. Failures are
// already reported through formatter.
func renderSessionOptions(opts *RenderOptions, formatter *OutputFormatter) ([]engine.Option, error) {
	var sessOpts []engine.Option

	if opts.Catalog != "" {
		cat, err := catalog.Load(opts.Catalog)
		if err != nil {
			code, ce := catalogErrorCode(err)
			exitCode := ExitCommandError
			if ce != nil && exitCodeForField(ce.Field) == ExitFailure {
				exitCode = ExitFailure
			}
			return nil, formatter.Fail(exitCode, code, "failed to load catalog", err)
		}
		if opts.Strict {
			cat.Strict = true
		}
		formatter.VerboseLog("Loaded catalog with %d component(s), %d action(s)", len(cat.Components), len(cat.Actions))
		sessOpts = append(sessOpts, engine.WithCatalog(cat))
	}

	if opts.Data != "" {
		data, err := loadData(opts.Data)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeData, "failed to load data", err)
		}
		sessOpts = append(sessOpts, engine.WithData(data))
	}

	malformed, err := engine.ParseMalformedPolicy(opts.Malformed)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	confirm, err := engine.ParseConfirmPolicy(opts.Confirm)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	return append(sessOpts,
		engine.WithMalformedPolicy(malformed),
		engine.WithConfirmPolicy(confirm),
		engine.WithMaxElements(opts.MaxElements),
		engine.WithMaxPatches(opts.MaxPatches),
	), nil
}

// loadData reads the initial data model. JSON is valid YAML, so one
// decoder serves both.
func loadData(path string) (ir.Object, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromAny(doc)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", path, err)
	}
	return v.(ir.Object), nil
}

// resumeSession rebuilds the tree from the session's journal, if it has
// one, and returns the last seq it holds.
func resumeSession(ctx context.Context, st *store.Store, sess *engine.Session) (int64, error) {
	if _, err := st.GetSession(ctx, sess.ID()); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return 0, nil
		}
		return 0, err
	}
	records, err := st.ReadPatches(ctx, sess.ID())
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return sess.Resume(records)
}

// openRenderSource opens the configured frame source. The returned close
// function is safe to call more than once.
func openRenderSource(opts *RenderOptions, logger *slog.Logger) (engine.FrameSource, func(), error) {
	switch {
	case opts.NATSURL != "":
		msgs, closer, err := source.Connect(opts.NATSURL, opts.Subject)
		if err != nil {
			return nil, nil, err
		}
		return msgs, sync.OnceFunc(closer), nil
	case opts.Follow:
		f, err := source.Follow(opts.Stream, source.WithIdleTimeout(opts.Idle), source.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return f, sync.OnceFunc(func() { _ = f.Close() }), nil
	default:
		file, err := os.Open(opts.Stream)
		if err != nil {
			return nil, nil, err
		}
		return source.Lines(file), sync.OnceFunc(func() { _ = file.Close() }), nil
	}
}

// serveMetrics exposes reg on addr/metrics until the returned stop
// function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// buildRenderReport renders the session and gathers its diagnostics:
// stream diagnostics first, then render diagnostics not already reported.
func buildRenderReport(sess *engine.Session, resumed int64) RenderReport {
	snap := sess.Tree().Snapshot()
	res := sess.Render()
	hash, _ := ir.SpecHash(snap.Spec)

	report := RenderReport{
		Session:     sess.ID(),
		State:       sess.Stream().State().String(),
		Seq:         snap.Seq,
		SpecHash:    hash,
		Resumed:     resumed,
		Tree:        nodeView(res.Root),
		Diagnostics: []DiagnosticView{},
	}
	for _, d := range mergeDiagnostics(sess.Stream().Diagnostics(), res.Diagnostics) {
		report.Diagnostics = append(report.Diagnostics, DiagnosticView{
			Code:    string(d.Code),
			Message: d.Message,
			Element: d.Key,
			Path:    d.Path,
			Action:  d.Action,
		})
	}
	return report
}

func mergeDiagnostics(lists ...[]*engine.Error) []*engine.Error {
	seen := make(map[string]bool)
	var out []*engine.Error
	for _, list := range lists {
		for _, d := range list {
			if msg := d.Error(); !seen[msg] {
				seen[msg] = true
				out = append(out, d)
			}
		}
	}
	return out
}

func nodeView(n *engine.Node) *NodeView {
	if n == nil {
		return nil
	}
	v := &NodeView{
		Key:       n.Key,
		Type:      n.Type,
		RenderKey: n.RenderKey,
		Props:     n.Props,
		Fallback:  n.Fallback,
	}
	for prop := range n.Actions {
		v.Actions = append(v.Actions, prop)
	}
	sort.Strings(v.Actions)
	for _, c := range n.Children {
		v.Children = append(v.Children, nodeView(c))
	}
	return v
}

// outputRender prints the report: JSON, or a header line followed by the
// tree outline and diagnostics.
func outputRender(formatter *OutputFormatter, report RenderReport, sess *engine.Session, consumeErr error) error {
	if formatter.JSON() {
		var cliErr *CLIError
		if consumeErr != nil {
			cliErr = &CLIError{Code: ErrCodeStream, Message: consumeErr.Error()}
		}
		return formatter.Report(report, cliErr)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "session %s: %s at seq %d\n", report.Session, report.State, report.Seq)
	res := sess.Render()
	res.Diagnostics = mergeDiagnostics(sess.Stream().Diagnostics(), res.Diagnostics)
	_, err := io.WriteString(w, res.Outline())
	if consumeErr != nil {
		fmt.Fprintf(w, "FAIL %s: %v\n", ErrCodeStream, consumeErr)
	}
	return err
}
