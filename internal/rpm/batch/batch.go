// Package batch runs per-file package operations on a pool of workers.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// Result is the outcome for one file.
type Result struct {
	Path     string
	NEVRA    string
	OK       bool
	Error    error
	Duration time.Duration
}

// Options control a batch run.
type Options struct {
	Workers     int
	Description string
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
}

// Func handles one file. The returned string, if any, names the package.
type Func func(ctx context.Context, path string) (string, error)

// Run applies fn to every path using opts.Workers goroutines. Results come
// back in the order of paths. Paths not started before ctx is done are
// reported with ctx.Err().
func Run(ctx context.Context, paths []string, opts Options, fn Func) []Result {
	log := logger.Logger()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	bar := newBar(len(paths), opts)
	results := make([]Result, len(paths))
	jobs := make(chan int, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				path := paths[idx]
				if bar != nil {
					bar.Describe(fmt.Sprintf("%s %s", opts.Description, filepath.Base(path)))
				}

				start := time.Now()
				var (
					name string
					err  = ctx.Err()
				)
				if err == nil {
					name, err = fn(ctx, path)
				}
				results[idx] = Result{Path: path, NEVRA: name, OK: err == nil, Error: err, Duration: time.Since(start)}
				if err != nil {
					log.Errorf("%s %s failed: %v", opts.Description, path, err)
				} else {
					log.Debugf("%s %s ok in %s", opts.Description, path, results[idx].Duration)
				}

				if bar != nil {
					bar.Add(1)
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	if bar != nil {
		bar.Finish()
	}
	return results
}

func newBar(total int, opts Options) *progressbar.ProgressBar {
	if opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(opts.Progress),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

// VerifyFile checks the digests of one package file and, when v is not nil,
// both of its signatures.
func VerifyFile(path string, v rpm.Verifier) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pkg, err := rpm.ParsePackage(f)
	if err != nil {
		return "", err
	}
	name, _ := pkg.Metadata.NEVRA()
	if err := pkg.VerifyDigests(); err != nil {
		return name, err
	}
	if v != nil {
		if err := pkg.VerifySignature(v); err != nil {
			return name, err
		}
	}
	return name, nil
}

// VerifyAll verifies every file in paths in parallel.
func VerifyAll(ctx context.Context, paths []string, v rpm.Verifier, opts Options) []Result {
	if opts.Description == "" {
		opts.Description = "verifying"
	}
	return Run(ctx, paths, opts, func(_ context.Context, path string) (string, error) {
		return VerifyFile(path, v)
	})
}

// Failed returns the results that did not succeed.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}
