package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/kidandcat/pomkit/pkg/config"
	"github.com/kidandcat/pomkit/pkg/driver"
	"github.com/kidandcat/pomkit/pkg/fixture"
	"github.com/kidandcat/pomkit/pkg/report"
	"github.com/kidandcat/pomkit/pkg/runner"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	var (
		configFile = flag.String("config", "", "Config file path")
		browser    = flag.String("browser", "", "Browser backend: chromedp, rod or playwright")
		baseURL    = flag.String("base-url", "", "Base URL of the shop under test")
		headless   = flag.Bool("headless", true, "Run browser in headless mode")
		scope      = flag.String("scope", "", "Session scope: test or session")
		runPattern = flag.String("run", "", "Run only tests matching the regular expression")
		parallel   = flag.Int("parallel", 0, "Number of packages and tests run in parallel")
		reportPath = flag.String("report", "", "Report file (.md, .html or .json)")
		jsonLog    = flag.String("json", "", "Also save the raw go test -json stream to this file")
		tags       = flag.String("tags", "e2e", "Comma separated build tags for go test")
		timeout    = flag.Duration("timeout", 10*time.Minute, "Timeout for the whole go test run")
	)

	flag.Parse()

	cfg := config.Default()

	configPath := *configFile
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfig)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	if configPath != "" {
		fileConfig, err := config.LoadConfig(configPath)
		if err != nil {
			log.Printf("Failed to load config file %s: %v", configPath, err)
			return 1
		}
		cfg.Apply(fileConfig)
		// Test binaries run in their package directory.
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Print("Invalid environment: ", err)
		return 1
	}

	// CLI flags override everything
	if *browser != "" {
		cfg.Browser = *browser
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if isFlagSet("headless") {
		cfg.Headless = *headless
	}
	if *scope != "" {
		cfg.Scope = driver.Scope(*scope)
	}
	if *parallel > 0 {
		cfg.Parallel = *parallel
	}
	if *reportPath != "" {
		cfg.ReportPath = *reportPath
	}
	if abs, err := filepath.Abs(cfg.ScreenshotDir); err == nil {
		cfg.ScreenshotDir = abs
	}

	if err := cfg.Validate(); err != nil {
		log.Print("Invalid configuration: ", err)
		return 1
	}

	logger, err := fixture.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer logger.Sync()

	packages := flag.Args()
	if len(packages) == 0 {
		packages = []string{"./..."}
	}

	runnerConfig := &runner.Config{
		Packages: packages,
		Run:      *runPattern,
		Parallel: cfg.Parallel,
		Timeout:  *timeout,
		Env:      runner.Env(cfg, configPath),
	}
	if *tags != "" {
		runnerConfig.Tags = strings.Split(*tags, ",")
	}

	if *jsonLog != "" {
		f, err := os.Create(*jsonLog)
		if err != nil {
			log.Print("Failed to create json log: ", err)
			return 1
		}
		defer f.Close()
		runnerConfig.JSONLog = f
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s\n\n", yellow(fmt.Sprintf("Running %s against %s with %s...",
		strings.Join(packages, " "), cfg.BaseURL, cfg.Browser)))

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	s.Start()

	summary, err := runner.NewRunner(runnerConfig, logger).Run(ctx, func(result report.TestResult) {
		s.Stop()
		printResult(result)
		s.Start()
	})
	s.Stop()

	if err != nil {
		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) {
			fmt.Print(exitErr.Output)
		}
		if ctx.Err() != nil {
			fmt.Println("\nReceived interrupt signal, shutting down gracefully...")
		}
		log.Printf("Run failed: %v", err)
	}

	if cfg.ReportPath != "" && (len(summary.Tests) > 0 || len(summary.Packages) > 0) {
		if werr := report.Write(cfg.ReportPath, summary); werr != nil {
			log.Printf("Failed to write report: %v", werr)
		} else {
			fmt.Printf("\nReport written to %s\n", blue(cfg.ReportPath))
		}
	}

	printSummary(summary)

	if err != nil || !summary.OK() {
		return 1
	}
	return 0
}

func printResult(result report.TestResult) {
	d := result.Duration.Round(time.Millisecond)
	switch result.Status {
	case report.StatusPass:
		fmt.Printf("%s %s (%s)\n", green("✓ PASS"), result.Name, d)
	case report.StatusSkip:
		fmt.Printf("%s %s\n", yellow("- SKIP"), result.Name)
	default:
		fmt.Printf("%s %s (%s)\n", red("✗ FAIL"), result.Name, d)
		for _, line := range strings.Split(strings.TrimRight(result.Output, "\n"), "\n") {
			if strings.HasPrefix(line, "=== ") || strings.HasPrefix(line, "--- ") {
				continue
			}
			fmt.Printf("  %s\n", red(line))
		}
	}
}

func printSummary(s report.Summary) {
	line := fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		s.Passed, s.Failed, s.Skipped, s.Duration().Round(time.Millisecond))
	if s.OK() {
		fmt.Printf("\n%s\n", green(line))
		return
	}
	fmt.Printf("\n%s\n", red(line))
	for _, p := range s.Packages {
		if p.Status == report.StatusFail && p.Name != "" {
			fmt.Printf("%s %s\n", red("✗ FAIL"), p.Name)
		}
	}
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
