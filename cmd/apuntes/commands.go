package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hyperjump/apuntes/internal/cli"
	"github.com/hyperjump/apuntes/internal/config"
	"github.com/hyperjump/apuntes/internal/export"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/pipeline"
	"github.com/hyperjump/apuntes/internal/settings"
	"github.com/hyperjump/apuntes/internal/storage"
	"github.com/hyperjump/apuntes/internal/study"
	"github.com/hyperjump/apuntes/pkg/utils"
	"go.uber.org/zap"
)

// commandEnv is what every storage-backed subcommand needs.
type commandEnv struct {
	ctx        context.Context
	cfg        *config.Config
	logger     *zap.Logger
	components *Components
	stop       context.CancelFunc
}

// openEnv loads config, builds the logger and wires the components. Outside debug mode
// components only log warnings and errors so command output stays readable.
func openEnv(configPath string, debug bool) *commandEnv {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	componentLogger := utils.QuietLogger(logger, debugMode)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	components, err := initializeComponents(ctx, cfg, componentLogger)
	if err != nil {
		stop()
		fail("Failed to initialize: %v", err)
	}
	return &commandEnv{ctx: ctx, cfg: cfg, logger: logger, components: components, stop: stop}
}

func (e *commandEnv) Close() {
	e.components.Close()
	e.stop()
	_ = e.logger.Sync()
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "apuntes notes slides -pdf out.pdf"
// would otherwise leave -pdf unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", defaultConfigPath, "config file path")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

func outputFlag(fs *flag.FlagSet) *string {
	return fs.String("output", "text", "output format: text or json")
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

// kindArg returns the kind named by the first positional argument.
func kindArg(fs *flag.FlagSet, usage string) models.Kind {
	if fs.NArg() < 1 {
		fail("Usage: %s", usage)
	}
	kind, err := models.ParseKind(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}
	return kind
}

func runUpload() {
	const usage = "apuntes upload [flags] <kind> <files...>"
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, usage)
	if fs.NArg() < 2 {
		fail("Usage: %s", usage)
	}

	env := openEnv(*configPath, *debug)
	defer env.Close()

	failed := 0
	for _, path := range fs.Args()[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			failed++
			continue
		}
		f, err := env.components.Library.Add(env.ctx, kind, path, data, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to upload %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("Stored %s (%s) as #%d\n", f.Name, cli.HumanBytes(f.Size), f.ID)
	}
	if failed > 0 {
		env.Close()
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := outputFlag(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes list [flags] <kind>")
	format := parseOutput(*output)

	env := openEnv(*configPath, *debug)
	defer env.Close()

	files, err := env.components.Library.List(env.ctx, kind)
	if err != nil {
		fail("List failed: %v", err)
	}
	if err := cli.WriteUploads(os.Stdout, kind, files, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes clear [flags] <kind>")

	env := openEnv(*configPath, *debug)
	defer env.Close()

	if err := env.components.Library.Clear(env.ctx, kind); err != nil {
		fail("Clear failed: %v", err)
	}
	fmt.Printf("Cleared all %s.\n", kind)
}

func runParse() {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := outputFlag(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes parse [flags] <kind>")
	format := parseOutput(*output)

	env := openEnv(*configPath, *debug)
	defer env.Close()

	status, err := env.components.Pipeline.Parse(env.ctx, kind)
	if err != nil {
		fail("Parse failed: %v", err)
	}
	if err := cli.WriteParseStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runText() {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes text [flags] <kind>")

	env := openEnv(*configPath, *debug)
	defer env.Close()

	text, err := env.components.Pipeline.LoadText(env.ctx, kind)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println(text)
}

// pdfPath resolves the -pdf flag: a directory gets the fixed export file name of kind.
func pdfPath(out string, kind models.Kind) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, export.FileName(kind))
	}
	return out
}

func runNotes() {
	fs := flag.NewFlagSet("notes", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	pdfOut := fs.String("pdf", "", "write the notes as PDF to this file or directory")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes notes [flags] <kind>")

	env := openEnv(*configPath, *debug)
	defer env.Close()

	notes, err := env.components.Study.Notes(env.ctx, kind)
	if err != nil {
		fail("Notes failed: %v", err)
	}
	if *pdfOut == "" {
		fmt.Println(notes)
		return
	}
	path := pdfPath(*pdfOut, kind)
	f, err := os.Create(path)
	if err != nil {
		fail("Failed to create %s: %v", path, err)
	}
	if err := export.Write(f, kind, notes); err != nil {
		f.Close()
		fail("Export failed: %v", err)
	}
	if err := f.Close(); err != nil {
		fail("Failed to write %s: %v", path, err)
	}
	fmt.Printf("Notes written to %s\n", path)
}

func runQuiz() {
	fs := flag.NewFlagSet("quiz", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := outputFlag(fs)
	n := fs.Int("n", study.DefaultQuestions, fmt.Sprintf("number of questions (%d-%d)", study.MinQuestions, study.MaxQuestions))
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	kind := kindArg(fs, "apuntes quiz [flags] <kind>")
	format := parseOutput(*output)

	env := openEnv(*configPath, *debug)
	defer env.Close()

	quiz, err := env.components.Study.Questions(env.ctx, kind, *n)
	if err != nil {
		fail("Quiz failed: %v", err)
	}
	if err := cli.WriteQuiz(os.Stdout, quiz, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// questionIndex converts the 1-based question number shown to users into a slice index.
func questionIndex(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("question number must be 1 or greater, got %d", n)
	}
	return n - 1, nil
}

func runCorrect() {
	const usage = "apuntes correct -quiz <id> -q <n> <answer>"
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	quizID := fs.String("quiz", "", "quiz id printed by apuntes quiz")
	q := fs.Int("q", 1, "question number (1-based)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	answer := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *quizID == "" || answer == "" {
		fail("Usage: %s", usage)
	}
	index, err := questionIndex(*q)
	if err != nil {
		fail("%v", err)
	}

	env := openEnv(*configPath, *debug)
	defer env.Close()

	quiz, err := env.components.Study.Quiz(env.ctx, *quizID)
	if err != nil {
		fail("%v", err)
	}
	feedback, err := env.components.Study.Correct(env.ctx, *quizID, index, answer)
	if err != nil {
		fail("Correction failed: %v", err)
	}
	if index < len(quiz.Questions) {
		fmt.Printf("%d. %s\n\n", *q, quiz.Questions[index])
	}
	fmt.Println(feedback)
}

func runKey() {
	const usage = "apuntes key <set|clear|show> [key]"
	if len(os.Args) < 3 {
		fail("Usage: %s", usage)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[3:]))

	env := openEnv(*configPath, *debug)
	defer env.Close()
	keys := env.components.Settings

	switch sub {
	case "set":
		if fs.NArg() < 1 {
			fail("Usage: apuntes key set <key>")
		}
		if err := keys.SetAPIKey(env.ctx, fs.Arg(0)); err != nil {
			fail("Failed to store key: %v", err)
		}
		fmt.Println("API key stored.")
	case "clear":
		if err := keys.ClearAPIKey(env.ctx); err != nil {
			fail("Failed to clear key: %v", err)
		}
		fmt.Println("API key cleared.")
	case "show":
		user, err := keys.APIKey(env.ctx)
		if err != nil {
			fail("%v", err)
		}
		effective, err := keys.EffectiveAPIKey(env.ctx)
		if err != nil {
			fail("%v", err)
		}
		switch {
		case user != "":
			fmt.Printf("%s (stored)\n", settings.Mask(user))
		case effective != "":
			fmt.Printf("%s (from config or OPENAI_API_KEY)\n", settings.Mask(effective))
		default:
			fmt.Println("No API key configured.")
		}
	default:
		fail("Usage: %s", usage)
	}
}

// statusKind is the per-kind part of the status report.
type statusKind struct {
	Uploads int64 `json:"uploads"`
	Records int   `json:"records"`
	Parsed  bool  `json:"parsed"`
}

// statusReport is the shape printed by apuntes status.
type statusReport struct {
	Kinds          map[models.Kind]statusKind `json:"kinds"`
	APIKeySet      bool                       `json:"api_key_set"`
	Model          string                     `json:"model"`
	KVBackend      string                     `json:"kv_backend"`
	DatabasePath   string                     `json:"database_path"`
	KVPath         string                     `json:"kv_path,omitempty"`
	DiskUsageBytes *int64                     `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := outputFlag(fs)
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*output)

	env := openEnv(*configPath, *debug)
	defer env.Close()
	ctx, cfg := env.ctx, env.cfg

	report := statusReport{
		Kinds:        make(map[models.Kind]statusKind, len(models.Kinds)),
		Model:        cfg.LLM.Model,
		KVBackend:    cfg.Storage.KVBackend,
		DatabasePath: cfg.Storage.DatabasePath,
	}
	for _, kind := range models.Kinds {
		n, err := env.components.Library.Count(ctx, kind)
		if err != nil {
			fail("Count uploads failed: %v", err)
		}
		sk := statusKind{Uploads: n}
		batch, err := env.components.Pipeline.Load(ctx, kind)
		switch {
		case err == nil:
			sk.Parsed = true
			sk.Records = batch.Len()
		case !errors.Is(err, pipeline.ErrNoBatch):
			fail("Load batch failed: %v", err)
		}
		report.Kinds[kind] = sk
	}
	key, err := env.components.Settings.EffectiveAPIKey(ctx)
	if err != nil {
		fail("%v", err)
	}
	report.APIKeySet = key != ""
	paths := []string{cfg.Storage.DatabasePath}
	if cfg.Storage.KVBackend == config.KVBackendBolt {
		report.KVPath = cfg.Storage.KVPath
		paths = append(paths, cfg.Storage.KVPath)
	}
	if diskBytes, err := storage.StoreSizeBytes(paths...); err == nil {
		report.DiskUsageBytes = &diskBytes
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}
	for _, kind := range models.Kinds {
		sk := report.Kinds[kind]
		fmt.Printf("%-10s uploads: %-4d parsed: %-5t records: %d\n", kind, sk.Uploads, sk.Parsed, sk.Records)
	}
	fmt.Println()
	fmt.Printf("api_key_set:    %t\n", report.APIKeySet)
	fmt.Printf("model:          %s\n", report.Model)
	fmt.Printf("kv_backend:     %s\n", report.KVBackend)
	fmt.Printf("database_path:  %s\n", report.DatabasePath)
	if report.KVPath != "" {
		fmt.Printf("kv_path:        %s\n", report.KVPath)
	}
	if report.DiskUsageBytes != nil {
		fmt.Printf("disk_usage:     %s\n", cli.HumanBytes(*report.DiskUsageBytes))
	}
}

// writeDefaultConfig saves the built-in defaults to path. An existing file is kept unless force.
// The API key is never written; it comes from OPENAI_API_KEY or `apuntes key set`.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cfg := config.Default()
	cfg.LLM.APIKey = ""
	return config.Save(path, cfg)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fail("Init failed: %v", err)
	}
	fmt.Printf("Config written to %s\n", *configPath)
}
