// llvm-i18n extracts the user-visible strings of LLVM/Clang into a corpus
// and translates it with an OpenAI-compatible service, resumably.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/renameio"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/llvm-i18n/checkpoint"
	"github.com/minios-linux/llvm-i18n/config"
	"github.com/minios-linux/llvm-i18n/contenthash"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/extract"
	"github.com/minios-linux/llvm-i18n/pofile"
	"github.com/minios-linux/llvm-i18n/settings"
	"github.com/minios-linux/llvm-i18n/translate"
	"github.com/minios-linux/llvm-i18n/typography"
	"github.com/minios-linux/llvm-i18n/validate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	infoTag  = color.New(color.FgBlue)
	okTag    = color.New(color.FgGreen)
	warnTag  = color.New(color.FgYellow, color.Bold)
	errorTag = color.New(color.FgRed)
	heading  = color.New(color.FgBlue, color.Bold)
)

// logOut is where log lines go; tests replace it.
var logOut io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintf(logOut, infoTag.Sprint("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(logOut, okTag.Sprint("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(logOut, warnTag.Sprint("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(logOut, errorTag.Sprint("[ERROR]")+" "+format+"\n", args...)
}

// stderrIsTerminal reports whether progress bars and colors make sense.
func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
)

// loadConfig reads --config, or .llvm-i18n.yaml in --root when present.
func loadConfig() (*config.File, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(rootDir)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "llvm-i18n",
		Short: "Extract and translate the messages of LLVM/Clang",
		Long: `llvm-i18n: corpus extraction and resumable translation for LLVM/Clang.

Collects the natural-language string literals of an LLVM source tree into a
deduplicated corpus, then translates it batch by batch with an
OpenAI-compatible service. Accepted translations are checkpointed after
every batch, so an interrupted run resumes where it stopped.

Commands:
  collect     Build the corpus from a source tree
  translate   Translate pending corpus entries
  batch       Offline batch requests and responses
  status      Show translation progress
  export-po   Write the translations as a gettext catalog
  seed-po     Import translations from existing catalogs
  release     Lift the quarantine of failed entries
  install     Write the table loaded by the runtime hook
  auth        Manage service tokens

Service settings come from flags, then LLM_ENDPOINT, LLM_MODEL and
LLM_TOKEN, then .llvm-i18n.yaml, then tokens stored with 'auth login'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project directory holding .llvm-i18n.yaml")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <root>/"+config.FileName+")")

	root.AddCommand(
		newCollectCmd(),
		newTranslateCmd(),
		newBatchCmd(),
		newStatusCmd(),
		newExportPOCmd(),
		newSeedPOCmd(),
		newReleaseCmd(),
		newInstallCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if !stderrIsTerminal() {
		color.NoColor = true
	}
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "llvm-i18n version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// collect
// ---------------------------------------------------------------------------

func newCollectCmd() *cobra.Command {
	var (
		src          string
		build        string
		output       string
		markers      []string
		noPreprocess bool
		workers      int
		maxSpan      int
		keepTests    bool
		keepNoise    bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Build the corpus from an LLVM source tree",
		Long: `Scan the LLVM source tree for string literals passed to message-producing
calls, expand the diagnostic and option tables with the C preprocessor, and
write the filtered, deduplicated and sorted corpus.

Markers are given as TOKEN[@FLAG,...], where FLAG is suffix, trunc,
max=N or path=DIR. They replace the built-in table.

Examples:
  llvm-i18n collect --src ~/llvm-project --build ~/llvm-project/build
  llvm-i18n collect --src . --no-preprocess --marker 'report_fatal_error(@suffix'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("src") {
				cfg.SourceRoot = absPath(src)
			}
			if cmd.Flags().Changed("build") {
				cfg.BuildRoot = absPath(build)
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("max-span") {
				cfg.MaxSpan = maxSpan
			}
			if keepTests {
				cfg.KeepTests = true
			}
			if len(markers) > 0 {
				cfg.Markers = markers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cfg.Path(cfg.Corpus)
			if output != "" {
				out = output
			}
			return runCollect(cmd.Context(), cfg, out, noPreprocess, keepNoise)
		},
	}

	cmd.Flags().StringVar(&src, "src", "", "LLVM source tree (default: source_root)")
	cmd.Flags().StringVar(&build, "build", "", "Build directory with the generated tables (default: build_root)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Corpus file (default: corpus)")
	cmd.Flags().StringArrayVar(&markers, "marker", nil, "Marker spec, repeatable (replaces the built-in table)")
	cmd.Flags().BoolVar(&noPreprocess, "no-preprocess", false, "Skip the diagnostic and option tables")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent file scans (0 = all CPUs)")
	cmd.Flags().IntVar(&maxSpan, "max-span", 0, "Bytes captured per call site (0 = whole call)")
	cmd.Flags().BoolVar(&keepTests, "keep-tests", false, "Also scan test directories")
	cmd.Flags().BoolVar(&keepNoise, "keep-noise", false, "Keep strings without cased letters")

	return cmd
}

func runCollect(ctx context.Context, cfg *config.File, out string, noPreprocess, keepNoise bool) error {
	srcRoot := cfg.Path(cfg.SourceRoot)
	if srcRoot == "" {
		return fmt.Errorf("no source tree; pass --src or set source_root")
	}
	if fi, err := os.Stat(srcRoot); err != nil || !fi.IsDir() {
		return fmt.Errorf("source tree %s is not a directory", srcRoot)
	}
	table, err := cfg.MarkerTable()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	ext := &extract.Extractor{
		Markers: table,
		Scan:    extract.ScanOptions{MaxSpan: cfg.MaxSpan, Workers: cfg.Workers},
		Walk:    extract.WalkOptions{KeepTests: cfg.KeepTests},
		OnLog:   logInfo,
	}
	if !noPreprocess {
		if cfg.BuildRoot == "" {
			return fmt.Errorf("no build directory; pass --build, set build_root, or use --no-preprocess")
		}
		ext.Expander = &extract.CCExpander{CC: cfg.CC, IncludeDirs: cfg.IncludePaths()}
	}
	if stderrIsTerminal() {
		var (
			once sync.Once
			bar  *progressbar.ProgressBar
		)
		ext.OnProgress = func(done, total int) {
			once.Do(func() { bar = newProgressBar(total, "scan") })
			_ = bar.Add(1)
		}
		defer func() {
			if bar != nil {
				_ = bar.Finish()
			}
		}()
	}

	res, err := ext.Run(ctx, srcRoot)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		logWarning("%d of %d files could not be read", res.Skipped, res.Files)
	}

	c, err := corpus.Build(res.Strings, corpus.BuildOptions{
		DenyList:  append(corpus.DefaultDenyList(), cfg.DenyList...),
		KeepNoise: keepNoise,
	})
	if err != nil {
		return err
	}
	if err := c.WriteFile(out); err != nil {
		return err
	}
	logSuccess("Wrote %d entries to %s (%d strings extracted from %d files)", c.Len(), out, len(res.Strings), res.Files)
	return nil
}

// ---------------------------------------------------------------------------
// Shared job setup
// ---------------------------------------------------------------------------

// jobFlags are the file flags shared by the commands that open a checkpoint.
type jobFlags struct {
	corpus     string
	errata     string
	checkpoint string
}

func (f *jobFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.corpus, "corpus", "", "Corpus file (default: corpus)")
	fs.StringVar(&f.errata, "errata", "", "Errata file (default: errata)")
	fs.StringVar(&f.checkpoint, "checkpoint", "", "Checkpoint file (default: <language>.yml)")
}

// resolve fills unset flags from the config file.
func (f jobFlags) resolve(cfg *config.File) jobFlags {
	if f.corpus == "" {
		f.corpus = cfg.Path(cfg.Corpus)
	}
	if f.errata == "" {
		f.errata = cfg.Path(cfg.Errata)
	}
	if f.checkpoint == "" {
		f.checkpoint = cfg.Path(cfg.Checkpoint)
	}
	return f
}

// job is an opened corpus with its checkpoint.
type job struct {
	corpus    *corpus.Corpus
	validator *validate.Validator
	ckpt      *checkpoint.Checkpoint
	report    checkpoint.Report
}

func openJob(f jobFlags, maxAttempts int) (*job, error) {
	c, err := corpus.LoadFile(f.corpus)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("corpus %s not found; run 'llvm-i18n collect' first", f.corpus)
		}
		return nil, err
	}
	v, err := loadValidator(f.errata)
	if err != nil {
		return nil, err
	}
	cp, rep, err := checkpoint.Load(f.checkpoint, c, v)
	if err != nil {
		return nil, err
	}
	cp.MaxAttempts = maxAttempts

	if rep.Pruned() {
		logWarning("Checkpoint %s: dropped %d unknown, %d rejected, %d malformed records",
			f.checkpoint, rep.Unknown, rep.Rejected, rep.Malformed)
		for _, p := range rep.Problems {
			logWarning("  line %d %s: %v", p.Line, p.Hash, p.Err)
		}
	}
	return &job{corpus: c, validator: v, ckpt: cp, report: rep}, nil
}

func loadValidator(errataPath string) (*validate.Validator, error) {
	if errataPath == "" {
		return validate.New(nil), nil
	}
	errata, err := validate.LoadErrata(errataPath)
	if err != nil {
		return nil, err
	}
	return validate.New(errata), nil
}

// resolveService applies the precedence flag > environment > config file,
// then falls back to the credential stored for the resolved endpoint.
func resolveService(flags, env config.Service, cfg *config.File, stored func(endpoint string) *settings.Credential) config.Service {
	svc := flags.Merge(env, config.Service{Endpoint: cfg.Endpoint, Model: cfg.Model})
	if svc.Endpoint != "" && stored != nil {
		if cred := stored(svc.Endpoint); cred != nil {
			svc = svc.Merge(config.Service{Model: cred.Model, Token: cred.Token})
		}
	}
	return svc
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newProgressBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", desc)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// writeOutput atomically writes path, or stdout for "-".
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer t.Cleanup()
	if err := write(t); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := t.Chmod(0o644); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	files       jobFlags
	prompt      string
	endpoint    string
	model       string
	token       string
	proxy       string
	batchSize   int
	maxAttempts int
	maxBatches  int
	maxRetries  int
	timeout     time.Duration
	retryDelay  time.Duration
	formatCJK   bool
	verbose     bool
	dryRun      bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate pending corpus entries",
		Long: `Translate the corpus entries that have no accepted translation yet.

Entries are sent in batches. A candidate is accepted only when it keeps every
placeholder and markup token of its source and satisfies the errata; the
checkpoint is saved after every batch. Batches whose response cannot be used
stay pending for the next run. Ctrl-C stops after saving.

The prompt template may use {{lang}} and {{language}}.

Examples:
  LLM_ENDPOINT=https://api.deepseek.com/v1/ LLM_MODEL=deepseek-chat \
    llvm-i18n translate --errata errata.txt
  llvm-i18n translate --dry-run --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("batch-size") {
				cfg.BatchSize = a.batchSize
				if cfg.BatchSize == 0 {
					cfg.BatchSize = config.DefaultBatchSize
				}
			}
			if fs.Changed("max-attempts") {
				cfg.MaxAttempts = a.maxAttempts
			}
			if fs.Changed("timeout") {
				cfg.Timeout = a.timeout
			}
			if fs.Changed("retry-delay") {
				cfg.RetryDelay = a.retryDelay
			}
			if a.formatCJK {
				cfg.FormatCJK = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTranslate(cmd.Context(), cfg, a)
		},
	}

	a.files.register(cmd.Flags())
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Instruction template (default: prompt)")
	cmd.Flags().StringVar(&a.endpoint, "endpoint", "", "API base URL (or "+config.EnvEndpoint+")")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (or "+config.EnvModel+")")
	cmd.Flags().StringVar(&a.token, "token", "", "Access token (or "+config.EnvToken+")")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&a.batchSize, "batch-size", 0, "Entries per request (default: batch_size)")
	cmd.Flags().IntVar(&a.maxAttempts, "max-attempts", 0, "Quarantine after N rejected candidates (0 = never)")
	cmd.Flags().IntVar(&a.maxBatches, "max-batches", 0, "Stop after N requests (0 = until done)")
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", 2, "HTTP retries for transient errors within one request")
	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (default: timeout)")
	cmd.Flags().DurationVar(&a.retryDelay, "retry-delay", 0, "Pause after a failed batch (default: retry_delay)")
	cmd.Flags().BoolVar(&a.formatCJK, "format-cjk", false, "Space Han text around placeholders before validation")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Echo prompts and streamed responses")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be sent without calling the service")

	return cmd
}

func runTranslate(ctx context.Context, cfg *config.File, a translateArgs) error {
	files := a.files.resolve(cfg)
	promptPath := a.prompt
	if promptPath == "" {
		promptPath = cfg.Path(cfg.Prompt)
	}
	template, err := translate.LoadPrompt(promptPath)
	if err != nil {
		return err
	}
	template = translate.ExpandPrompt(template, cfg.Language)

	j, err := openJob(files, cfg.MaxAttempts)
	if err != nil {
		return err
	}
	if j.report.Pruned() {
		if err := j.ckpt.Save(); err != nil {
			return err
		}
	}
	pending := j.ckpt.Pending()
	logInfo("Corpus: %d entries, %d translated, %d pending, %d quarantined",
		j.corpus.Len(), j.ckpt.Len(), len(pending), len(j.ckpt.Quarantined()))

	if len(pending) == 0 {
		logSuccess("Nothing to translate")
		return nil
	}

	if a.dryRun {
		batches := (len(pending) + cfg.BatchSize - 1) / cfg.BatchSize
		logInfo("Would send %d requests of up to %d entries", batches, cfg.BatchSize)
		if a.verbose {
			first := pending[:min(cfg.BatchSize, len(pending))]
			sources := make([]string, len(first))
			for i, h := range first {
				sources[i], _ = j.corpus.Lookup(h)
			}
			fmt.Fprint(os.Stderr, translate.BuildPrompt(template, sources))
		}
		return nil
	}

	svc := resolveService(
		config.Service{Endpoint: a.endpoint, Model: a.model, Token: a.token},
		config.Env(), cfg, settings.Get)
	if err := svc.Check(true); err != nil {
		return fmt.Errorf("%w (see 'llvm-i18n auth login')", err)
	}

	ccfg := translate.OpenAIConfig{
		Endpoint:   svc.Endpoint,
		Model:      svc.Model,
		Token:      svc.Token,
		Proxy:      a.proxy,
		MaxRetries: a.maxRetries,
	}
	if a.verbose {
		ccfg.OnContent = func(d string) { fmt.Fprint(os.Stderr, d) }
		ccfg.OnReasoning = func(d string) { fmt.Fprint(os.Stderr, color.HiBlackString("%s", d)) }
	}
	client, err := translate.NewOpenAIClient(ccfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	var bar *progressbar.ProgressBar
	if !a.verbose && stderrIsTerminal() {
		bar = newProgressBar(j.corpus.Len(), cfg.Language)
		_ = bar.Set(j.ckpt.Len())
	}
	clearBar := func() {
		if bar != nil {
			_ = bar.Clear()
		}
	}

	opts := translate.Options{
		Prompt:     template,
		BatchSize:  cfg.BatchSize,
		Timeout:    cfg.Timeout,
		RetryDelay: cfg.RetryDelay,
		MaxBatches: a.maxBatches,
		Verbose:    a.verbose,
		OnProgress: func(done, total int) {
			if bar != nil {
				_ = bar.Set(done)
			} else {
				logInfo("  %s: %d/%d (%.1f%%)", cfg.Language, done, total, percent(done, total))
			}
		},
		OnLog: func(format string, args ...any) {
			clearBar()
			logInfo(format, args...)
		},
		OnError: func(format string, args ...any) {
			clearBar()
			logError(format, args...)
		},
	}
	if cfg.FormatCJK {
		opts.Formatter = typography.SpaceCJK
		if a.verbose {
			opts.Formatter = func(s string) string {
				return typography.Trace(s, func(rule, before, after string) {
					logInfo("  %s: %q -> %q", rule, before, after)
				})
			}
		}
	}

	logInfo("Service: %s, model: %s, batch size: %d", svc.Endpoint, svc.Model, cfg.BatchSize)
	sum, err := translate.New(j.corpus, j.ckpt, j.validator, client, opts).Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	logInfo("%d requests (%d failed): %d accepted, %d rejected, %d unassigned",
		sum.Batches, sum.FailedBatches, sum.Accepted, sum.Rejected, sum.Missing)
	if sum.Quarantined > 0 {
		logWarning("%d entries quarantined; 'llvm-i18n release' retries them", sum.Quarantined)
	}
	switch {
	case sum.Interrupted:
		logWarning("Interrupted, progress saved to %s", j.ckpt.Path())
	case sum.Pending == 0:
		logSuccess("Translation complete!")
	default:
		logInfo("%d entries still pending; run again to continue", sum.Pending)
	}
	return nil
}

// ---------------------------------------------------------------------------
// batch (offline requests / responses)
// ---------------------------------------------------------------------------

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Offline batch requests and responses",
		Long: `Prepare a JSONL file of single-entry chat completion requests for a batch
API, and import the responses into the checkpoint. No service is contacted.`,
	}
	cmd.AddCommand(newBatchExportCmd(), newBatchImportCmd())
	return cmd
}

func newBatchExportCmd() *cobra.Command {
	var (
		files   jobFlags
		prompt  string
		output  string
		model   string
		url     string
		pending bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write batch requests for the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			if prompt == "" {
				prompt = cfg.Path(cfg.Prompt)
			}
			template, err := translate.LoadPrompt(prompt)
			if err != nil {
				return err
			}
			template = translate.ExpandPrompt(template, cfg.Language)

			svc := resolveService(config.Service{Model: model}, config.Env(), cfg, nil)
			if svc.Model == "" {
				return fmt.Errorf("no model; pass --model or set %s", config.EnvModel)
			}

			var (
				c      *corpus.Corpus
				hashes []string
			)
			if pending {
				j, err := openJob(files, cfg.MaxAttempts)
				if err != nil {
					return err
				}
				c, hashes = j.corpus, j.ckpt.Pending()
				if hashes == nil {
					hashes = []string{}
				}
			} else if c, err = corpus.LoadFile(files.corpus); err != nil {
				return err
			}

			var n int
			err = writeOutput(output, func(w io.Writer) error {
				var werr error
				n, werr = translate.WriteBatchRequests(w, c, template, svc.Model, url, hashes)
				return werr
			})
			if err != nil {
				return err
			}
			logSuccess("Wrote %d requests to %s", n, output)
			return nil
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().StringVar(&prompt, "prompt", "", "Instruction template (default: prompt)")
	cmd.Flags().StringVarP(&output, "output", "o", "requests.jsonl", "Output file, - for stdout")
	cmd.Flags().StringVar(&model, "model", "", "Model name (or "+config.EnvModel+")")
	cmd.Flags().StringVar(&url, "url", translate.DefaultBatchURL, "Request URL written into every line")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only entries the checkpoint still needs")

	return cmd
}

func newBatchImportCmd() *cobra.Command {
	var (
		files    jobFlags
		noCorpus bool
	)

	cmd := &cobra.Command{
		Use:   "import RESPONSES.jsonl",
		Short: "Append batch responses to the checkpoint",
		Long: `Read a batch response file and append every usable translation to the
checkpoint. With a corpus, responses for unknown entries and candidates the
validator rejects are skipped and the checkpoint is rewritten in corpus
order afterwards. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			return runBatchImport(cmd.InOrStdin(), args[0], files, !noCorpus, cfg.MaxAttempts)
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().BoolVar(&noCorpus, "no-corpus", false, "Import without checking against the corpus")

	return cmd
}

func runBatchImport(stdin io.Reader, input string, files jobFlags, useCorpus bool, maxAttempts int) error {
	in := stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var (
		c *corpus.Corpus
		v *validate.Validator
	)
	if useCorpus {
		var err error
		if c, err = corpus.LoadFile(files.corpus); err != nil {
			return err
		}
		if v, err = loadValidator(files.errata); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(files.checkpoint, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	st, err := translate.ImportBatchResponses(in, out, c, v)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	logInfo("%d responses: %d written, %d malformed, %d without content, %d without a block, %d empty, %d unknown, %d rejected",
		st.Lines, st.Written, st.Malformed, st.NoContent, st.NoBlock, st.Empty, st.Unknown, st.Rejected)

	if useCorpus {
		j, err := openJob(files, maxAttempts)
		if err != nil {
			return err
		}
		if err := j.ckpt.Save(); err != nil {
			return err
		}
		logSuccess("Checkpoint %s: %d of %d entries translated", files.checkpoint, j.ckpt.Len(), j.corpus.Len())
	} else {
		logSuccess("Appended %d records to %s", st.Written, files.checkpoint)
	}
	return nil
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		files    jobFlags
		coverage string
		top      int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show translation progress",
		Long: `Show corpus size, translated, pending and quarantined entries. With
--coverage, relate a test-coverage report to the checkpoint and list the most
frequently reached untranslated messages. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			j, err := openJob(files, cfg.MaxAttempts)
			if err != nil {
				return err
			}
			return showStatus(cmd.OutOrStdout(), cfg, files, j, coverage, top)
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().StringVar(&coverage, "coverage", "", "Coverage report (JSON) from the test sampler")
	cmd.Flags().IntVar(&top, "top", 10, "Untranslated reached messages to list")

	return cmd
}

func showStatus(w io.Writer, cfg *config.File, files jobFlags, j *job, coveragePath string, top int) error {
	total, done := j.corpus.Len(), j.ckpt.Len()
	quarantined := j.ckpt.Quarantined()

	fmt.Fprintf(w, "\n%s\n", heading.Sprint("Translation"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  Language:     %s (%s)\n", cfg.Language, translate.LanguageName(cfg.Language))
	fmt.Fprintf(w, "  Corpus:       %s\n", files.corpus)
	fmt.Fprintf(w, "  Checkpoint:   %s\n", files.checkpoint)
	fmt.Fprintf(w, "  Entries:      %d\n", total)
	fmt.Fprintf(w, "  Translated:   %d (%.1f%%)\n", done, percent(done, total))
	fmt.Fprintf(w, "  Pending:      %d\n", len(j.ckpt.Pending()))
	fmt.Fprintf(w, "  Quarantined:  %d\n", len(quarantined))
	fmt.Fprintf(w, "  Attempts:     %s\n", j.ckpt.State().Summary())

	if coveragePath == "" {
		fmt.Fprintln(w)
		return nil
	}
	cov, err := corpus.LoadCoverage(coveragePath)
	if err != nil {
		return err
	}
	st := cov.Stats(j.corpus, j.ckpt.Has)

	fmt.Fprintf(w, "\n%s\n", heading.Sprint("Coverage"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  Reached:      %d\n", st.Reached)
	fmt.Fprintf(w, "  In corpus:    %d\n", st.InCorpus)
	fmt.Fprintf(w, "  Translated:   %d (%.1f%%)\n", st.Translated, percent(st.Translated, st.InCorpus))
	for i, h := range st.Missing {
		if i == top {
			fmt.Fprintf(w, "  ... %d more\n", len(st.Missing)-top)
			break
		}
		src, _ := j.corpus.Lookup(h)
		fmt.Fprintf(w, "  %s  %s\n", h, truncate(src, 60))
	}
	fmt.Fprintln(w)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ---------------------------------------------------------------------------
// export-po / seed-po
// ---------------------------------------------------------------------------

func newExportPOCmd() *cobra.Command {
	var (
		files        jobFlags
		output       string
		untranslated bool
	)

	cmd := &cobra.Command{
		Use:   "export-po",
		Short: "Write the translations as a gettext catalog",
		Long: `Write the accepted translations as a PO file. Every entry carries its
content hash as msgctxt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			j, err := openJob(files, cfg.MaxAttempts)
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Path(cfg.Language + ".po")
			}
			f := pofile.Export(j.corpus, j.ckpt, cfg.Language, pofile.ExportOptions{
				Untranslated: untranslated,
				Generator:    "llvm-i18n " + version,
			})
			if err := writeOutput(output, f.Write); err != nil {
				return err
			}
			total, translated := f.Stats()
			logSuccess("Wrote %s (%s): %d/%d translated", output, f.HeaderField("Language"), translated, total)
			return nil
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "PO file (default: <language>.po), - for stdout")
	cmd.Flags().BoolVar(&untranslated, "untranslated", false, "Include entries without a translation")

	return cmd
}

func newSeedPOCmd() *cobra.Command {
	var (
		files     jobFlags
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "seed-po CATALOG...",
		Short: "Import translations from existing .po or .mo catalogs",
		Long: `Take translations for corpus entries from existing gettext catalogs.
Entries are matched by content hash context first, then by msgid. Candidates
go through the same validation as service output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			j, err := openJob(files, cfg.MaxAttempts)
			if err != nil {
				return err
			}
			added := 0
			for _, path := range args {
				found, st, err := pofile.Seed(path, j.corpus, j.validator)
				if err != nil {
					return err
				}
				n := 0
				for h, text := range found {
					if j.ckpt.Has(h) && !overwrite {
						continue
					}
					j.ckpt.Accept(h, text)
					n++
				}
				logInfo("%s: %d matching, %d rejected, %d taken", path, st.Found, st.Rejected, n)
				added += n
			}
			if err := j.ckpt.Save(); err != nil {
				return err
			}
			logSuccess("Seeded %d translations; %d of %d entries translated", added, j.ckpt.Len(), j.corpus.Len())
			return nil
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace translations already in the checkpoint")

	return cmd
}

// ---------------------------------------------------------------------------
// release
// ---------------------------------------------------------------------------

func newReleaseCmd() *cobra.Command {
	var files jobFlags

	cmd := &cobra.Command{
		Use:   "release [HASH...]",
		Short: "Lift the quarantine of failed entries",
		Long: `Reset the attempt count of the given entries, or of every quarantined
entry, so the next translate run tries them again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, h := range args {
				if !contenthash.Valid(h) {
					return fmt.Errorf("%q is not a content hash", h)
				}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files = files.resolve(cfg)
			j, err := openJob(files, cfg.MaxAttempts)
			if err != nil {
				return err
			}
			for _, h := range args {
				if j.corpus.Position(h) < 0 {
					logWarning("%s is not in the corpus", h)
				}
			}
			n := j.ckpt.State().Release(args...)
			if err := j.ckpt.Save(); err != nil {
				return err
			}
			logSuccess("Released %d quarantined entries", n)
			return nil
		},
	}

	files.register(cmd.Flags())
	return cmd
}

// ---------------------------------------------------------------------------
// install
// ---------------------------------------------------------------------------

func newInstallCmd() *cobra.Command {
	var (
		files jobFlags
		dir   string
		lang  string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the table loaded by the runtime hook",
		Long: `Write <dir>/<language>.yml, the translation table read by the clang-i18n
runtime hook. Translations whose quoted form uses escapes the hook cannot
decode are left out.

The directory defaults to $` + checkpoint.EnvTranslationDir + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = os.Getenv(checkpoint.EnvTranslationDir)
			}
			if dir == "" {
				return fmt.Errorf("no target directory; pass --dir or set %s", checkpoint.EnvTranslationDir)
			}
			if lang == "" {
				lang = cfg.Language
			}
			files = files.resolve(cfg)
			j, err := openJob(files, cfg.MaxAttempts)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path := checkpoint.TablePath(dir, lang)
			st, err := j.ckpt.InstallTable(path)
			if err != nil {
				return err
			}
			for _, h := range st.Unsupported {
				logWarning("%s skipped: translation needs an escape the hook cannot read", h)
			}
			logSuccess("Installed %d translations to %s", st.Written, path)
			return nil
		},
	}

	files.register(cmd.Flags())
	cmd.Flags().StringVar(&dir, "dir", "", "Translation directory (default: $"+checkpoint.EnvTranslationDir+")")
	cmd.Flags().StringVar(&lang, "lang", "", "Locale name, encoding suffix allowed (default: language)")

	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage service tokens",
		Long: `Store access tokens per endpoint so they need not be exported in every
shell. ` + config.EnvToken + ` and --token take precedence over stored tokens.

Examples:
  llvm-i18n auth login --endpoint https://api.deepseek.com/v1/
  llvm-i18n auth logout --endpoint https://api.deepseek.com/v1/
  llvm-i18n auth logout                    Remove all tokens
  llvm-i18n auth list`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var endpoint, model string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a token for an endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authLogin(cmd.InOrStdin(), endpoint, model)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API base URL (default: "+config.EnvEndpoint+" or config)")
	cmd.Flags().StringVar(&model, "model", "", "Default model for this endpoint")

	return cmd
}

func authLogin(stdin io.Reader, endpoint, model string) error {
	if endpoint == "" {
		if cfg, err := loadConfig(); err == nil {
			endpoint = resolveService(config.Service{}, config.Env(), cfg, nil).Endpoint
		}
	}
	scanner := bufio.NewScanner(stdin)

	fmt.Fprintf(os.Stderr, "\n%s\n", heading.Sprint("Service Token Setup"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	if endpoint == "" {
		fmt.Fprintf(os.Stderr, "  Enter endpoint URL (e.g., https://api.example.com/v1/): ")
		if !scanner.Scan() {
			return fmt.Errorf("no input received")
		}
		endpoint = strings.TrimSpace(scanner.Text())
		if endpoint == "" {
			return fmt.Errorf("endpoint URL is required")
		}
	} else {
		fmt.Fprintf(os.Stderr, "  Endpoint: %s\n", endpoint)
	}

	existing := settings.Get(endpoint)
	if existing != nil && existing.Token != "" {
		fmt.Fprintf(os.Stderr, "  Current token: %s\n", warnTag.Sprint(settings.MaskKey(existing.Token)))
		fmt.Fprintf(os.Stderr, "  Enter new token to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter token: ")
	}
	if !scanner.Scan() {
		return fmt.Errorf("no input received")
	}
	token := strings.TrimSpace(scanner.Text())

	cred := &settings.Credential{Token: token, Model: model}
	if existing != nil {
		if cred.Token == "" {
			cred.Token = existing.Token
		}
		if cred.Model == "" {
			cred.Model = existing.Model
		}
	}
	if cred.Token == "" {
		return fmt.Errorf("no token provided")
	}
	if err := settings.Set(endpoint, cred); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	logSuccess("Token for %s saved to %s", settings.NormalizeEndpoint(endpoint), settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens",
		Long:  `Remove the token of one endpoint, or all tokens when --endpoint is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint != "" {
				if err := settings.Remove(endpoint); err != nil {
					return err
				}
				logSuccess("Token for %s removed", settings.NormalizeEndpoint(endpoint))
				return nil
			}
			if err := settings.RemoveAll(); err != nil {
				return err
			}
			logSuccess("All stored tokens removed")
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint to log out (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("endpoint", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		store, err := settings.Load()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return store.Endpoints(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n%s\n", heading.Sprint("Stored Tokens"))
			fmt.Fprintln(w, strings.Repeat("─", 60))
			if len(store) == 0 {
				fmt.Fprintf(w, "  %s\n", errorTag.Sprint("none"))
			}
			for _, ep := range store.Endpoints() {
				cred := store[ep]
				line := fmt.Sprintf("  %s  token: %s", ep, settings.MaskKey(cred.Token))
				if cred.Model != "" {
					line += "  model: " + cred.Model
				}
				fmt.Fprintln(w, line)
			}

			fmt.Fprintf(w, "\n  %s\n", warnTag.Sprint("Environment Variables"))
			for _, name := range []string{config.EnvEndpoint, config.EnvModel, config.EnvToken} {
				val := os.Getenv(name)
				switch {
				case val == "":
					val = errorTag.Sprint("not set")
				case name == config.EnvToken:
					val = okTag.Sprint(settings.MaskKey(val)) + " (overrides stored tokens)"
				}
				fmt.Fprintf(w, "  %-13s %s\n", name+":", val)
			}
			fmt.Fprintln(w)
			return nil
		},
	}
}
