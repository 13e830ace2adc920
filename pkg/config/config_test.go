package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kidandcat/pomkit/pkg/driver"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "seconds",
			input: `"30s"`,
			want:  30 * time.Second,
		},
		{
			name:  "minutes",
			input: `"5m"`,
			want:  5 * time.Minute,
		},
		{
			name:  "complex duration",
			input: `"1h30m45s"`,
			want:  1*time.Hour + 30*time.Minute + 45*time.Second,
		},
		{
			name:    "invalid duration",
			input:   `"invalid"`,
			wantErr: true,
		},
		{
			name:    "number instead of string",
			input:   `30`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Errorf("Duration.UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && d.Duration != tt.want {
				t.Errorf("Duration = %v, want %v", d.Duration, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		content  string
		wantErr  bool
		check    func(t *testing.T, cfg *FileConfig)
	}{
		{
			name:     "yaml config",
			filename: "test.yaml",
			content: `baseURL: https://shop.test
credentials:
  username: rahulshettyacademy
  password: learning
browser: rod
headless: false
timeout: 45s
findTimeout: 5s
scope: session
styleProperties: [color, font-weight]
windowWidth: 1280`,
			check: func(t *testing.T, cfg *FileConfig) {
				if cfg.BaseURL != "https://shop.test" {
					t.Errorf("Expected baseURL https://shop.test, got %s", cfg.BaseURL)
				}
				if cfg.Credentials == nil || cfg.Credentials.Username != "rahulshettyacademy" || cfg.Credentials.Password != "learning" {
					t.Error("Expected credentials to be loaded")
				}
				if cfg.Browser != "rod" {
					t.Error("Expected browser to be rod")
				}
				if cfg.Headless == nil || *cfg.Headless != false {
					t.Error("Expected headless to be false")
				}
				if cfg.Timeout == nil || cfg.Timeout.Duration != 45*time.Second {
					t.Error("Expected timeout to be 45s")
				}
				if cfg.FindTimeout == nil || cfg.FindTimeout.Duration != 5*time.Second {
					t.Error("Expected findTimeout to be 5s")
				}
				if cfg.Scope != "session" {
					t.Error("Expected session scope")
				}
				if len(cfg.StyleProperties) != 2 || cfg.StyleProperties[1] != "font-weight" {
					t.Errorf("Unexpected style properties %v", cfg.StyleProperties)
				}
				if cfg.WindowWidth != 1280 {
					t.Error("Expected window width to be 1280")
				}
			},
		},
		{
			name:     "json config",
			filename: "test.json",
			content: `{
  "headless": true,
  "timeout": "30s",
  "browser": "playwright",
  "playwrightBrowser": "firefox",
  "reportPath": "out/report.md"
}`,
			check: func(t *testing.T, cfg *FileConfig) {
				if cfg.Headless == nil || *cfg.Headless != true {
					t.Error("Expected headless to be true")
				}
				if cfg.PlaywrightBrowser != "firefox" {
					t.Error("Expected playwright browser firefox")
				}
				if cfg.ReportPath != "out/report.md" {
					t.Error("Expected report path")
				}
			},
		},
		{
			name:     "invalid yaml",
			filename: "test.yaml",
			content:  `invalid: yaml: content:`,
			wantErr:  true,
		},
		{
			name:     "invalid json",
			filename: "test.json",
			content:  `{invalid json}`,
			wantErr:  true,
		},
		{
			name:     "unsupported format",
			filename: "test.txt",
			content:  `some content`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, tt.filename)
			err := os.WriteFile(configPath, []byte(tt.content), 0644)
			if err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}

			cfg, err := LoadConfig(configPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tempDir := t.TempDir()

	if found := findConfigFileIn(tempDir); found != "" {
		t.Errorf("Expected empty string, got %s", found)
	}

	configFiles := []string{
		"pomkit.config.yaml",
		"pomkit.yml",
		".pomkit.json",
	}

	for _, filename := range configFiles {
		files, _ := filepath.Glob(filepath.Join(tempDir, "*pomkit*"))
		for _, f := range files {
			os.Remove(f)
		}

		path := filepath.Join(tempDir, filename)
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatal(err)
		}

		if found := findConfigFileIn(tempDir); found != path {
			t.Errorf("Expected to find %s, got %s", path, found)
		}
	}
}

func TestApplyPrecedence(t *testing.T) {
	headless := false
	cfg := Default()
	cfg.Apply(&FileConfig{
		BaseURL:     "https://file.test",
		Browser:     "rod",
		Headless:    &headless,
		Timeout:     &Duration{20 * time.Second},
		Credentials: &Credentials{Username: "file-user", Password: "file-pass"},
	})

	env := map[string]string{
		EnvBaseURL:  "https://env.test",
		EnvUsername: "env-user",
		EnvScope:    "session",
	}
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.BaseURL != "https://env.test" {
		t.Errorf("Expected env baseURL to win, got %s", cfg.BaseURL)
	}
	if cfg.Browser != "rod" {
		t.Errorf("Expected file browser, got %s", cfg.Browser)
	}
	if cfg.Headless {
		t.Error("Expected headless from file to be false")
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("Expected 20s timeout, got %s", cfg.Timeout)
	}
	if cfg.Credentials.Username != "env-user" || cfg.Credentials.Password != "file-pass" {
		t.Errorf("Unexpected credentials %+v", cfg.Credentials)
	}
	if cfg.Scope != driver.ScopeSession {
		t.Errorf("Expected session scope, got %s", cfg.Scope)
	}
	if cfg.FindTimeout != 10*time.Second {
		t.Error("Expected untouched default find timeout")
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for _, key := range []string{EnvHeadless, EnvTimeout} {
		cfg := Default()
		err := cfg.ApplyEnv(func(k string) string {
			if k == key {
				return "not-a-value"
			}
			return ""
		})
		if err == nil {
			t.Errorf("Expected error for bad %s", key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "playwright", mutate: func(c *Config) { c.Browser = driver.BrowserPlaywright }},
		{name: "unknown browser", mutate: func(c *Config) { c.Browser = "lynx" }, wantErr: true},
		{name: "unknown scope", mutate: func(c *Config) { c.Scope = "module" }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "shop.test" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.FindTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDriverOptions(t *testing.T) {
	cfg := Default()
	cfg.Browser = driver.BrowserRod
	cfg.Stealth = true
	cfg.FindTimeout = 3 * time.Second

	opts := cfg.DriverOptions()
	if opts.Browser != driver.BrowserRod || !opts.Stealth || opts.FindTimeout != 3*time.Second {
		t.Errorf("Unexpected driver options %+v", opts)
	}
	if !opts.Headless || !opts.Maximized {
		t.Error("Expected headless and maximized defaults to carry over")
	}
}

func TestLoadFromEnvConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte("baseURL: https://staging.test\nparallel: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBrowser, "playwright")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://staging.test" || cfg.Parallel != 4 || cfg.Browser != "playwright" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}
