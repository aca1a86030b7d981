// Command extractnow extracts an archive next to itself using the bundled 7-Zip
// archiver, and manages the file associations of the application.
//
// Usage:
//
//	extractnow [flags] archive
//	extractnow -register .zip
//	extractnow -default .7z
//	extractnow -cleanup
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Defacto2/extractnow"
	"github.com/Defacto2/extractnow/assoc"
	"github.com/Defacto2/extractnow/session"
	"github.com/Defacto2/extractnow/settings"
	"github.com/Defacto2/extractnow/userchoice"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvFolder is the environment variable that overrides the archiver folder.
const EnvFolder = "EXTRACTNOW_7ZIP"

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options are the command line flags.
type options struct {
	settings string
	folder   string
	register string
	def      string
	choose   string
	hash     string
	sid      string
	cleanup  bool
	ensure   bool
	list     bool
	open     bool
	verbose  bool
	archive  string
}

func parse(args []string, stderr io.Writer) (options, error) {
	var o options
	fset := flag.NewFlagSet("extractnow", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&o.settings, "settings", settings.Path(), "Path to the settings file")
	fset.StringVar(&o.folder, "7zip", "", "Folder holding the 7-Zip program, overrides the settings")
	fset.StringVar(&o.register, "register", "", "Register as an Open with handler of the extension")
	fset.StringVar(&o.def, "default", "", "Set as the default handler of the extension")
	fset.StringVar(&o.choose, "choose", "", "Show the Windows application chooser for the extension")
	fset.StringVar(&o.hash, "hash", "", "Print the UserChoice hash of the extension for the current minute")
	fset.StringVar(&o.sid, "sid", "", "User SID used by -hash and -default, the default is the current user")
	fset.BoolVar(&o.cleanup, "cleanup", false, "Remove every file association entry of the application")
	fset.BoolVar(&o.ensure, "ensure", false, "Register the application metadata for every known extension")
	fset.BoolVar(&o.list, "list", false, "List the archive content instead of extracting it")
	fset.BoolVar(&o.open, "open", false, "Open the output folder after the extraction")
	fset.BoolVar(&o.verbose, "v", false, "Verbose logging")
	if err := fset.Parse(args); err != nil {
		return o, err
	}
	switch fset.NArg() {
	case 0:
	case 1:
		o.archive = fset.Arg(0)
	default:
		return o, fmt.Errorf("%w: one archive at a time", errUsage)
	}
	if o.archive == "" && !o.tasks() {
		return o, fmt.Errorf("%w: an archive or a task flag is required", errUsage)
	}
	return o, nil
}

var errUsage = errors.New("usage")

// tasks reports whether a task flag that needs no archive is set.
func (o options) tasks() bool {
	return o.register != "" || o.def != "" || o.choose != "" || o.hash != "" || o.cleanup || o.ensure
}

func logger(verbose bool, stderr io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(stderr), level)
	return zap.New(core)
}

// app holds the dependencies of a command line run.
type app struct {
	opts   options
	log    *zap.Logger
	store  *settings.Store
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	keys   func() (assoc.Keys, error)
	opener session.Opener
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parse(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	log := logger(opts.verbose, stderr)
	defer func() { _ = log.Sync() }()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("load .env", zap.Error(err))
	}
	a := app{
		opts:   opts,
		log:    log,
		store:  settings.Open(opts.settings),
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		keys:   assoc.System,
		opener: session.System(),
	}
	if err := a.store.Load(); err != nil {
		log.Warn("settings defaults in use", zap.Error(err))
	}
	return a.exec(ctx)
}

func (a *app) exec(ctx context.Context) int {
	code := exitOK
	keep := func(c int) {
		if c != exitOK {
			code = c
		}
	}
	if a.opts.tasks() {
		keep(a.associations())
	}
	if a.opts.archive == "" {
		return code
	}
	if a.opts.list {
		keep(a.listing(ctx))
		return code
	}
	keep(a.extract(ctx))
	return code
}

// folders resolves the archiver folder from the flag, the environment and the settings, in that order.
type folders struct {
	flag  string
	store *settings.Store
}

func (f folders) ArchiverFolder() string {
	if s := strings.TrimSpace(f.flag); s != "" {
		return s
	}
	if s := strings.TrimSpace(os.Getenv(EnvFolder)); s != "" {
		return s
	}
	return f.store.ArchiverFolder()
}

// forced opens the output folder regardless of the saved setting.
type forced struct {
	session.Preferences
}

func (f forced) Get() settings.Settings {
	s := f.Preferences.Get()
	s.OpenOutputFolderOnComplete = true
	return s
}

func (a *app) extractor() *extractnow.Extractor {
	return extractnow.New(folders{flag: a.opts.folder, store: a.store}, a.log)
}

func (a *app) extract(ctx context.Context) int {
	var prefs session.Preferences = a.store
	if a.opts.open {
		prefs = forced{a.store}
	}
	c := &session.Controller{
		X:      a.extractor(),
		Prefs:  prefs,
		Opener: a.opener,
		Log:    a.log,
		Now:    a.now,
		Progress: func(p int) {
			fmt.Fprintf(a.stdout, "\r%3d%%", p)
		},
		Output: func(line string) {
			a.log.Debug(line)
		},
	}
	out, err := c.Run(ctx, a.opts.archive)
	fmt.Fprintln(a.stdout)
	switch {
	case errors.Is(err, extractnow.ErrCanceled):
		fmt.Fprintln(a.stderr, "Extraction canceled.")
		return exitCanceled
	case err != nil:
		fmt.Fprintln(a.stderr, err)
		return exitFailure
	case !out.Result.Success:
		fmt.Fprintln(a.stderr, out.Result.Message)
		return exitFailure
	}
	fmt.Fprintf(a.stdout, "Extracted %d files to %s\n", out.Files, out.Destination)
	return exitOK
}

func (a *app) listing(ctx context.Context) int {
	files, err := a.extractor().List(ctx, a.opts.archive)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitFailure
	}
	for _, name := range files {
		fmt.Fprintln(a.stdout, name)
	}
	return exitOK
}

func (a *app) sid() string {
	if a.opts.sid != "" {
		return a.opts.sid
	}
	return userchoice.CurrentUserSID()
}

func (a *app) associations() int {
	code := exitOK
	if ext := a.opts.hash; ext != "" {
		sid := a.sid()
		if sid == "" {
			fmt.Fprintln(a.stderr, assoc.ErrNoSID)
			return exitFailure
		}
		ext = assoc.Normalize(ext)
		fmt.Fprintln(a.stdout, userchoice.Generate(ext, assoc.ProgID(ext), sid, a.now()))
	}
	if ext := a.opts.choose; ext != "" {
		if err := assoc.OpenChooser(os.TempDir(), ext); err != nil {
			fmt.Fprintln(a.stderr, err)
			code = exitFailure
		}
	}
	if a.opts.register == "" && a.opts.def == "" && !a.opts.cleanup && !a.opts.ensure {
		return code
	}
	keys, err := a.keys()
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitFailure
	}
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitFailure
	}
	r := &assoc.Registrar{Keys: keys, AppPath: exe, Now: a.now, SID: a.sid, Log: a.log}
	if a.opts.cleanup {
		fmt.Fprintf(a.stdout, "Removed %d association entries\n", r.Cleanup())
	}
	if a.opts.ensure {
		if err := r.EnsureMetadata(); err != nil {
			fmt.Fprintln(a.stderr, err)
			code = exitFailure
		}
	}
	report := func(ext string, reg assoc.Registration) {
		if reg.Err != nil {
			fmt.Fprintf(a.stderr, "%s: %v\n", ext, reg.Err)
			code = exitFailure
			return
		}
		fmt.Fprintf(a.stdout, "%s: %s\n", assoc.Normalize(ext), reg.State)
	}
	if ext := a.opts.register; ext != "" {
		report(ext, r.RegisterOpenWith(ext))
	}
	if ext := a.opts.def; ext != "" {
		report(ext, r.SetDefaultWithHash(ext))
	}
	return code
}
