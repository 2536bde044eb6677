package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TimeWindowSec     int `yaml:"time_window_sec"`
	// EpsilonMS pads every computed wait.
	EpsilonMS *int `yaml:"epsilon_ms"`
}

type ScrapingConfig struct {
	// DelayBetweenRequests may be 0 to disable the pause after each target.
	DelayBetweenRequests *float64 `yaml:"delay_between_requests"`
	PageLoadWaitSec      float64  `yaml:"page_load_wait_sec"`
	RenderTimeoutSec     int      `yaml:"render_timeout_sec"`
	Renderer             string   `yaml:"renderer"`
}

type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	WindowSize  []int  `yaml:"window_size"`
	UserAgent   string `yaml:"user_agent"`
	UserDataDir string `yaml:"user_data_dir"`
	ExecPath    string `yaml:"exec_path"`
	Proxy       string `yaml:"proxy"`
}

type HTTPConfig struct {
	TimeoutSec       int    `yaml:"timeout_sec"`
	UserAgent        string `yaml:"user_agent"`
	RespectRobots    bool   `yaml:"respect_robots"`
	CloudflareBypass bool   `yaml:"cloudflare_bypass"`
	SessionCookie    string `yaml:"session_cookie"`
}

type LinkedInConfig struct {
	AutoLogin bool   `yaml:"auto_login"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
}

type AccessConfig struct {
	WallMarkers        []string `yaml:"wall_markers"`
	RestrictionPhrases []string `yaml:"restriction_phrases"`
	RestrictedPolicy   string   `yaml:"restricted_policy"`
}

type InputConfig struct {
	TargetsFile string `yaml:"targets_file"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	XLSX *bool  `yaml:"xlsx"`
	JSON *bool  `yaml:"json"`
}

type DBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Records string `yaml:"records"`
		Runs    string `yaml:"runs"`
	} `yaml:"collections"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level"`
}

type SpiderConfig struct {
	RateLimiting RateLimitConfig `yaml:"rate_limiting"`
	Scraping     ScrapingConfig  `yaml:"scraping"`
	Browser      BrowserConfig   `yaml:"browser"`
	HTTP         HTTPConfig      `yaml:"http"`
	LinkedIn     LinkedInConfig  `yaml:"linkedin"`
	Access       AccessConfig    `yaml:"access"`
	Input        InputConfig     `yaml:"input"`
	Output       OutputConfig    `yaml:"output"`
	DB           DBConfig        `yaml:"db"`
	Server       ServerConfig    `yaml:"server"`
	Log          LogConfig       `yaml:"log"`
}

// Environment variables that override the file.
const (
	EnvEmail         = "LINKEDIN_EMAIL"
	EnvPassword      = "LINKEDIN_PASSWORD"
	EnvSessionCookie = "LINKEDIN_SESSION_COOKIE"
	EnvMongoURI      = "MONGO_URI"
	EnvPort          = "PORT"
)

// LoadConfig reads path, fills defaults and overlays the environment. A
// missing file yields the defaults.
func LoadConfig(path string) (*SpiderConfig, error) {
	var cfg SpiderConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read %s", path)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func Default() *SpiderConfig {
	var cfg SpiderConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *SpiderConfig) applyDefaults() {
	if c.RateLimiting.RequestsPerMinute <= 0 {
		c.RateLimiting.RequestsPerMinute = 10
	}
	if c.RateLimiting.TimeWindowSec <= 0 {
		c.RateLimiting.TimeWindowSec = 60
	}
	if c.RateLimiting.EpsilonMS == nil {
		c.RateLimiting.EpsilonMS = intPtr(1000)
	}
	if c.Scraping.DelayBetweenRequests == nil || *c.Scraping.DelayBetweenRequests < 0 {
		c.Scraping.DelayBetweenRequests = floatPtr(3)
	}
	if c.Scraping.PageLoadWaitSec <= 0 {
		c.Scraping.PageLoadWaitSec = 3
	}
	if c.Scraping.Renderer == "" {
		c.Scraping.Renderer = "browser"
	}
	if len(c.Browser.WindowSize) != 2 {
		c.Browser.WindowSize = []int{1920, 1080}
	}
	if c.HTTP.TimeoutSec <= 0 {
		c.HTTP.TimeoutSec = 30
	}
	if c.Access.RestrictedPolicy == "" {
		c.Access.RestrictedPolicy = "extract"
	}
	if c.Input.TargetsFile == "" {
		c.Input.TargetsFile = "data/profile_urls.txt"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "data/output"
	}
	if c.Output.XLSX == nil {
		c.Output.XLSX = boolPtr(true)
	}
	if c.Output.JSON == nil {
		c.Output.JSON = boolPtr(true)
	}
	if c.DB.Connection == "" {
		c.DB.Connection = "mongodb://localhost:27017"
	}
	if c.DB.Database == "" {
		c.DB.Database = "profile_spider"
	}
	if c.DB.Collections.Records == "" {
		c.DB.Collections.Records = "profiles"
	}
	if c.DB.Collections.Runs == "" {
		c.DB.Collections.Runs = "runs"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv fills credentials and connection strings from the environment.
// Values already in the file win for credentials, as in the .env loader.
func (c *SpiderConfig) applyEnv() {
	c.LinkedIn.Email = firstNonEmpty(c.LinkedIn.Email, os.Getenv(EnvEmail))
	c.LinkedIn.Password = firstNonEmpty(c.LinkedIn.Password, os.Getenv(EnvPassword))
	c.HTTP.SessionCookie = firstNonEmpty(c.HTTP.SessionCookie, os.Getenv(EnvSessionCookie))
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		c.DB.Connection = uri
	}
	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		c.Server.Addr = ":" + port
	}
}

func (c *SpiderConfig) Delay() time.Duration {
	return seconds(*c.Scraping.DelayBetweenRequests)
}

func (c *SpiderConfig) PageLoadWait() time.Duration {
	return seconds(c.Scraping.PageLoadWaitSec)
}

func (c *SpiderConfig) RateWindow() time.Duration {
	return time.Duration(c.RateLimiting.TimeWindowSec) * time.Second
}

func (c *SpiderConfig) RateEpsilon() time.Duration {
	return time.Duration(*c.RateLimiting.EpsilonMS) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
