package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kidandcat/pomkit/pkg/driver"
)

// FileConfig represents the configuration loaded from a file
type FileConfig struct {
	BaseURL           string       `yaml:"baseURL" json:"baseURL"`
	Credentials       *Credentials `yaml:"credentials" json:"credentials"`
	Browser           string       `yaml:"browser" json:"browser"`
	PlaywrightBrowser string       `yaml:"playwrightBrowser" json:"playwrightBrowser"`
	ExecPath          string       `yaml:"execPath" json:"execPath"`
	Headless          *bool        `yaml:"headless" json:"headless"`
	Maximized         *bool        `yaml:"maximized" json:"maximized"`
	Stealth           bool         `yaml:"stealth" json:"stealth"`
	WindowWidth       int          `yaml:"windowWidth" json:"windowWidth"`
	WindowHeight      int          `yaml:"windowHeight" json:"windowHeight"`
	Timeout           *Duration    `yaml:"timeout" json:"timeout"`
	FindTimeout       *Duration    `yaml:"findTimeout" json:"findTimeout"`
	Scope             string       `yaml:"scope" json:"scope"`
	ScreenshotDir     string       `yaml:"screenshotDir" json:"screenshotDir"`
	ReportPath        string       `yaml:"reportPath" json:"reportPath"`
	Parallel          int          `yaml:"parallel" json:"parallel"`
	StyleProperties   []string     `yaml:"styleProperties" json:"styleProperties"`
	LogLevel          string       `yaml:"logLevel" json:"logLevel"`
}

// Credentials is the account the suite logs in with.
type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the fully resolved configuration handed to fixtures and the CLI.
type Config struct {
	BaseURL           string
	Credentials       Credentials
	Browser           string
	PlaywrightBrowser string
	ExecPath          string
	Headless          bool
	Maximized         bool
	Stealth           bool
	WindowWidth       int
	WindowHeight      int
	Timeout           time.Duration
	FindTimeout       time.Duration
	Scope             driver.Scope
	ScreenshotDir     string
	ReportPath        string
	Parallel          int
	StyleProperties   []string
	LogLevel          string
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		BaseURL:           "https://rahulshettyacademy.com",
		Browser:           driver.BrowserChromedp,
		PlaywrightBrowser: "chromium",
		Headless:          true,
		Maximized:         true,
		WindowWidth:       1920,
		WindowHeight:      1080,
		Timeout:           30 * time.Second,
		FindTimeout:       10 * time.Second,
		Scope:             driver.ScopeTest,
		ScreenshotDir:     "__screenshots__",
		ReportPath:        "report.html",
		Parallel:          1,
		LogLevel:          "info",
	}
}

// Duration is a custom type for unmarshaling duration strings
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// LoadConfig loads configuration from file
func LoadConfig(filename string) (*FileConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config FileConfig
	ext := filepath.Ext(filename)

	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// FindConfigFile searches for a config file in the current directory
func FindConfigFile() string {
	return findConfigFileIn(".")
}

func findConfigFileIn(dir string) string {
	configNames := []string{
		"pomkit.config.yaml",
		"pomkit.config.yml",
		"pomkit.config.json",
		"pomkit.yaml",
		"pomkit.yml",
		"pomkit.json",
		".pomkit.yaml",
		".pomkit.yml",
		".pomkit.json",
	}

	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Apply overlays the fields set in fc onto c.
func (c *Config) Apply(fc *FileConfig) {
	if fc == nil {
		return
	}
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.Credentials != nil {
		c.Credentials = *fc.Credentials
	}
	if fc.Browser != "" {
		c.Browser = fc.Browser
	}
	if fc.PlaywrightBrowser != "" {
		c.PlaywrightBrowser = fc.PlaywrightBrowser
	}
	if fc.ExecPath != "" {
		c.ExecPath = fc.ExecPath
	}
	if fc.Headless != nil {
		c.Headless = *fc.Headless
	}
	if fc.Maximized != nil {
		c.Maximized = *fc.Maximized
	}
	if fc.Stealth {
		c.Stealth = true
	}
	if fc.WindowWidth > 0 {
		c.WindowWidth = fc.WindowWidth
	}
	if fc.WindowHeight > 0 {
		c.WindowHeight = fc.WindowHeight
	}
	if fc.Timeout != nil {
		c.Timeout = fc.Timeout.Duration
	}
	if fc.FindTimeout != nil {
		c.FindTimeout = fc.FindTimeout.Duration
	}
	if fc.Scope != "" {
		c.Scope = driver.Scope(fc.Scope)
	}
	if fc.ScreenshotDir != "" {
		c.ScreenshotDir = fc.ScreenshotDir
	}
	if fc.ReportPath != "" {
		c.ReportPath = fc.ReportPath
	}
	if fc.Parallel > 0 {
		c.Parallel = fc.Parallel
	}
	if len(fc.StyleProperties) > 0 {
		c.StyleProperties = fc.StyleProperties
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
}

// Environment variables read by ApplyEnv. The CLI sets them for the test
// processes it starts.
const (
	EnvConfig            = "POMKIT_CONFIG"
	EnvBaseURL           = "POMKIT_BASE_URL"
	EnvUsername          = "POMKIT_USERNAME"
	EnvPassword          = "POMKIT_PASSWORD"
	EnvBrowser           = "POMKIT_BROWSER"
	EnvPlaywrightBrowser = "POMKIT_PLAYWRIGHT_BROWSER"
	EnvHeadless          = "POMKIT_HEADLESS"
	EnvScope             = "POMKIT_SCOPE"
	EnvTimeout           = "POMKIT_TIMEOUT"
	EnvScreenshotDir     = "POMKIT_SCREENSHOT_DIR"
	EnvLogLevel          = "POMKIT_LOG_LEVEL"
)

// ApplyEnv overlays POMKIT_* variables returned by getenv onto c.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(EnvUsername); v != "" {
		c.Credentials.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Credentials.Password = v
	}
	if v := getenv(EnvBrowser); v != "" {
		c.Browser = v
	}
	if v := getenv(EnvPlaywrightBrowser); v != "" {
		c.PlaywrightBrowser = v
	}
	if v := getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		c.Headless = b
	}
	if v := getenv(EnvScope); v != "" {
		c.Scope = driver.Scope(v)
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvScreenshotDir); v != "" {
		c.ScreenshotDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate rejects values no backend can use.
func (c *Config) Validate() error {
	switch c.Browser {
	case driver.BrowserChromedp, driver.BrowserRod, driver.BrowserPlaywright:
	default:
		return fmt.Errorf("unknown browser %q", c.Browser)
	}
	switch c.Scope {
	case driver.ScopeTest, driver.ScopeSession:
	default:
		return fmt.Errorf("unknown scope %q (want %s or %s)", c.Scope, driver.ScopeTest, driver.ScopeSession)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("baseURL must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 || c.FindTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// DriverOptions converts c into the options every backend understands.
func (c *Config) DriverOptions() driver.Options {
	return driver.Options{
		Browser:           c.Browser,
		PlaywrightBrowser: c.PlaywrightBrowser,
		Headless:          c.Headless,
		Maximized:         c.Maximized,
		WindowWidth:       c.WindowWidth,
		WindowHeight:      c.WindowHeight,
		Stealth:           c.Stealth,
		Timeout:           c.Timeout,
		FindTimeout:       c.FindTimeout,
		ExecPath:          c.ExecPath,
	}
}

// Load resolves the configuration for a test process: defaults, then the
// file named by POMKIT_CONFIG (or the first one FindConfigFile sees), then
// the environment.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(EnvConfig)
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		fc, err := LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg.Apply(fc)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
