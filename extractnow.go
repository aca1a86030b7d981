// Package extractnow extracts archive files by delegating the decompression
// to a bundled 7-Zip archiver and reporting its progress.
//
// The package never decodes an archive format itself. It locates the
// archiver, runs it as a child process, reads its console output for
// progress percentages and maps the exit of the process to a [Result].
//
//  1. [7z] - 7-Zip console version, preferred
//  2. [7zG] - 7-Zip GUI version, used when the console version is missing
//
// [7z]: https://www.7-zip.org/
// [7zG]: https://www.7-zip.org/
package extractnow

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Defacto2/extractnow/command"
	"go.uber.org/zap"
)

// WaitDelay is the maximum time allowed for the archiver output to drain
// after the process has exited or been killed.
const WaitDelay = 2 * time.Second

var (
	ErrBusy       = errors.New("extraction already in progress")
	ErrCanceled   = errors.New("extraction canceled")
	ErrExit       = errors.New("archiver exited with an error")
	ErrNoArchiver = errors.New("archiver program not found")
	ErrNoLibrary  = errors.New("archiver library not found")
	ErrPanic      = errors.New("extract panic")
	ErrStart      = errors.New("archiver failed to start")
)

// ProgressFunc receives a progress percentage between 0 and 100.
// Values are not guaranteed to be strictly increasing.
type ProgressFunc func(percent int)

// LogFunc receives a single line of archiver output.
type LogFunc func(line string)

// FolderSource provides the user configured archiver folder.
// An empty string means no override is configured.
type FolderSource interface {
	ArchiverFolder() string
}

// Job is a single extraction request.
type Job struct {
	Source      string // The source archive file, an absolute path.
	Destination string // The extraction destination directory, an absolute path.
}

// Result is the outcome of an extraction that ran to completion or failed.
// Cancellation is not a result, it is reported by the [ErrCanceled] error.
type Result struct {
	Success bool   // Success is true when the archiver exited with code 0.
	Message string // Message is a user facing explanation of a failure.
	Err     error  // Err is the cause of a failure, it wraps one of the package errors.
}

func failure(err error, msg string) Result {
	return Result{Success: false, Message: msg, Err: err}
}

// Extractor runs the archiver for one extraction at a time.
//
//	func Extract() {
//	    x := extractnow.New(nil, zap.NewNop())
//	    res, err := x.Extract(ctx, extractnow.Job{
//	        Source:      `C:\Downloads\archive.7z`,
//	        Destination: `C:\Downloads\archive`,
//	    }, nil, nil)
//	    if err != nil {
//	        fmt.Fprintf(os.Stderr, "error: %v\n", err)
//	        return
//	    }
//	    if !res.Success {
//	        fmt.Fprintln(os.Stderr, res.Message)
//	    }
//	}
type Extractor struct {
	Folders FolderSource   // Folders provides the user override of the archiver folder, it may be nil.
	Default string         // Default is the bundled archiver folder, when empty it is next to the executable.
	Layout  command.Layout // Layout names the archiver files within the folder.

	log  *zap.Logger
	busy atomic.Bool
}

// New returns an Extractor that reads the archiver folder override from folders.
func New(folders FolderSource, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		Folders: folders,
		Layout:  command.Zip7(),
		log:     log,
	}
}

func (x *Extractor) logger() *zap.Logger {
	if x.log == nil {
		return zap.NewNop()
	}
	return x.log
}

// Busy reports whether an extraction is in flight.
func (x *Extractor) Busy() bool {
	return x.busy.Load()
}

// Extract runs the archiver to extract the job source into the job destination.
// The progress and logf callbacks are optional and are called from a background
// goroutine, but never concurrently with each other.
//
// The returned error is nil unless the extraction was canceled by the ctx,
// which returns ErrCanceled, or another extraction is in flight, which returns ErrBusy.
// Every other problem is reported by a failed Result.
func (x *Extractor) Extract(ctx context.Context, job Job, progress ProgressFunc, logf LogFunc) (res Result, err error) {
	if !x.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer x.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			x.logger().Error("extract recovered", zap.Any("panic", r), zap.String("source", job.Source))
			res, err = failure(fmt.Errorf("%w: %v", ErrPanic, r), fmt.Sprint(r)), nil
		}
	}()
	if ctx.Err() != nil {
		return Result{}, canceled(ctx)
	}
	prog, ferr := x.Locate()
	if ferr != nil {
		return failure(ferr, x.message(ferr)), nil
	}
	return x.run(ctx, prog, job, progress, logf)
}

func (x *Extractor) run(ctx context.Context, prog string, job Job, progress ProgressFunc, logf LogFunc) (Result, error) {
	var (
		mu     sync.Mutex
		panics error
	)
	// deliver serializes the callbacks and keeps a panic from escaping the
	// output copying goroutine.
	deliver := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		defer func() {
			if r := recover(); r != nil && panics == nil {
				panics = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		fn()
	}
	stdout := newLineWriter(func(line string) {
		deliver(func() {
			if logf != nil {
				logf(line)
			}
			if p, ok := Percent(line); ok && progress != nil {
				progress(p)
			}
		})
	})
	stderr := newLineWriter(func(line string) {
		deliver(func() {
			if logf != nil {
				logf(StderrPrefix + line)
			}
		})
	})

	cmd := exec.CommandContext(ctx, prog, Args(job)...)
	cmd.Dir = filepath.Dir(job.Source)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = WaitDelay
	prepare(cmd)
	cmd.Cancel = func() error {
		x.logger().Info("killing archiver", zap.String("source", job.Source))
		return killTree(cmd)
	}

	x.logger().Debug("archiver start", zap.String("program", prog), zap.Strings("args", cmd.Args[1:]))
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return Result{}, canceled(ctx)
		}
		return failure(fmt.Errorf("%w: %w", ErrStart, err), "Failed to start 7-Zip process."), nil
	}
	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	if ctx.Err() != nil {
		return Result{}, canceled(ctx)
	}
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		// a descendant of the archiver still holds the output pipes open
		x.logger().Warn("archiver output not closed after exit", zap.String("source", job.Source))
		if kerr := killTree(cmd); kerr != nil {
			x.logger().Debug("kill archiver descendants", zap.Error(kerr))
		}
		err = nil
	}
	res := Result{Success: true}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			res = failure(fmt.Errorf("%w: code %d", ErrExit, code),
				fmt.Sprintf("7-Zip exited with code %d.", code))
		} else {
			res = failure(fmt.Errorf("extract wait %w", err), err.Error())
		}
	}
	if res.Success && progress != nil {
		deliver(func() { progress(100) })
	}
	mu.Lock()
	defer mu.Unlock()
	if panics == nil {
		return res, nil
	}
	if !res.Success {
		x.logger().Warn("callback panic", zap.String("source", job.Source), zap.Error(panics))
		return res, nil
	}
	return failure(panics, panics.Error()), nil
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
}

// Args returns the archiver arguments used to extract the job.
func Args(job Job) []string {
	const (
		extract   = "x"     // x extract files with full paths
		targetDir = "-o"    // -o output directory
		yes       = "-y"    // -y assume yes to all queries
		progress  = "-bsp1" // -bsp1 progress information to stdout
		output    = "-bso1" // -bso1 standard messages to stdout
	)
	return []string{extract, job.Source, targetDir + job.Destination, yes, progress, output}
}

// message returns the user facing message for an archiver location error.
func (x *Extractor) message(err error) string {
	switch {
	case errors.Is(err, ErrNoArchiver):
		return fmt.Sprintf("7-Zip binaries not found (%s or %s). "+
			"Select a valid 7-Zip folder in Settings, or restore default.",
			x.layout().Primary, x.layout().Fallback)
	case errors.Is(err, ErrNoLibrary):
		return fmt.Sprintf("7-Zip library (%s) not found next to the 7-Zip program. "+
			"Select a valid 7-Zip folder in Settings.", x.layout().Library)
	}
	return err.Error()
}
