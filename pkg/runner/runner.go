// Package runner drives `go test -json` over the page object suites and
// streams the results into a report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kidandcat/pomkit/pkg/config"
	"github.com/kidandcat/pomkit/pkg/parser"
	"github.com/kidandcat/pomkit/pkg/report"
)

type Config struct {
	GoBin    string
	Dir      string
	Packages []string
	Run      string
	Tags     []string
	Parallel int
	Timeout  time.Duration
	// Env is appended to the current environment of the child process.
	Env []string
	// JSONLog receives the raw event stream when set.
	JSONLog io.Writer
}

type Runner struct {
	config  *Config
	logger  *zap.Logger
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
	mu      sync.Mutex
}

func NewRunner(config *Config, logger *zap.Logger) *Runner {
	if config == nil {
		config = &Config{}
	}
	if config.GoBin == "" {
		config.GoBin = "go"
	}
	if len(config.Packages) == 0 {
		config.Packages = []string{"./..."}
	}
	if config.Parallel <= 0 {
		config.Parallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:  config,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// Args returns the arguments passed to the go command.
func (r *Runner) Args() []string {
	args := []string{"test", "-json", "-count=1"}
	if len(r.config.Tags) > 0 {
		args = append(args, "-tags", strings.Join(r.config.Tags, ","))
	}
	if r.config.Run != "" {
		args = append(args, "-run", r.config.Run)
	}
	p := strconv.Itoa(r.config.Parallel)
	args = append(args, "-p", p, "-parallel", p)
	if r.config.Timeout > 0 {
		args = append(args, "-timeout", r.config.Timeout.String())
	}
	return append(args, r.config.Packages...)
}

// Run executes the suite and calls onResult each time a test finishes.
// A failing test is not an error; the returned summary says whether the run
// passed.
func (r *Runner) Run(ctx context.Context, onResult func(report.TestResult)) (report.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	collector := report.NewCollector()
	if len(r.config.Packages) == 0 {
		return collector.Summary(), ErrNoPackages
	}

	args := r.Args()
	cmd := r.command(ctx, r.config.GoBin, args...)
	cmd.Dir = r.config.Dir
	cmd.Env = append(os.Environ(), r.config.Env...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	r.logger.Debug("starting go test",
		zap.String("runId", collector.RunID()),
		zap.Strings("args", args),
	)

	if err := cmd.Start(); err != nil {
		pw.Close()
		return collector.Summary(), fmt.Errorf("start %s: %w", r.config.GoBin, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	var src io.Reader = pr
	if r.config.JSONLog != nil {
		src = io.TeeReader(pr, r.config.JSONLog)
	}

	var output strings.Builder
	streamErr := parser.New().Stream(src, func(ev parser.Event) error {
		if ev.Package == "" && ev.Test == "" {
			output.WriteString(ev.Output)
		}
		if res, ok := collector.Add(ev); ok && onResult != nil {
			onResult(res)
		}
		return nil
	})
	if streamErr != nil {
		// Drain so the child is not blocked on a full pipe.
		io.Copy(io.Discard, pr)
	}

	err := <-waitErr
	summary := collector.Summary()

	if streamErr != nil {
		return summary, fmt.Errorf("read test events: %w", streamErr)
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		if onlyCommandOutput(summary) {
			return summary, &ExitError{Code: exitErr.ExitCode(), Output: output.String()}
		}
	default:
		return summary, fmt.Errorf("go test: %w", err)
	}

	r.logger.Debug("go test finished",
		zap.String("runId", summary.RunID),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

func onlyCommandOutput(s report.Summary) bool {
	if len(s.Tests) > 0 {
		return false
	}
	for _, p := range s.Packages {
		if p.Name != "" {
			return false
		}
	}
	return true
}

// Env converts cfg into the POMKIT_* variables the test processes read
// through config.Load.
func Env(cfg *config.Config, configPath string) []string {
	env := []string{
		config.EnvBaseURL + "=" + cfg.BaseURL,
		config.EnvBrowser + "=" + cfg.Browser,
		config.EnvPlaywrightBrowser + "=" + cfg.PlaywrightBrowser,
		config.EnvHeadless + "=" + strconv.FormatBool(cfg.Headless),
		config.EnvScope + "=" + string(cfg.Scope),
		config.EnvTimeout + "=" + cfg.Timeout.String(),
		config.EnvScreenshotDir + "=" + cfg.ScreenshotDir,
		config.EnvLogLevel + "=" + cfg.LogLevel,
	}
	if configPath != "" {
		env = append(env, config.EnvConfig+"="+configPath)
	}
	if cfg.Credentials.Username != "" {
		env = append(env, config.EnvUsername+"="+cfg.Credentials.Username)
	}
	if cfg.Credentials.Password != "" {
		env = append(env, config.EnvPassword+"="+cfg.Credentials.Password)
	}
	return env
}
