// Package config loads the wordbook pipeline configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "wordbook.yaml"

// Config holds all pipeline settings. Relative paths are resolved against
// DataDir by Resolve.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	CacheDir  string `yaml:"cache_dir"`
	OutputDir string `yaml:"output_dir"`

	Wiktionary WiktionaryConfig `yaml:"wiktionary"`
	Wordbook   WordbookConfig   `yaml:"wordbook"`
	Moot       MootConfig       `yaml:"moot"`
	WordNet    WordNetConfig    `yaml:"wordnet"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type WiktionaryConfig struct {
	// Path of the kaikki.org JSONL dump; ".gz" is decompressed on the fly.
	Path      string `yaml:"path"`
	URL       string `yaml:"url"`
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
}

type WordbookConfig struct {
	Path string `yaml:"path"`
}

// MootConfig holds the two wordbook table URLs. A "{letter}" placeholder
// is expanded to a..z, one page per letter.
type MootConfig struct {
	EnglishURL string `yaml:"english_url"`
	AnglishURL string `yaml:"anglish_url"`
	Timeout    string `yaml:"timeout"`
}

type WordNetConfig struct {
	Dir     string `yaml:"dir"`
	Workers int    `yaml:"workers"`
}

type MatcherConfig struct {
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	MatchLog      string `yaml:"match_log"`
	ErrorLog      string `yaml:"error_log"`
	MaxCandidates int    `yaml:"max_candidates"`
	MaxCalls      int    `yaml:"max_calls"`
	Timeout       string `yaml:"timeout"`
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
}

type SearchConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Key       string `yaml:"key"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:   "data",
		CacheDir:  "cache",
		OutputDir: "compiled",
		Wiktionary: WiktionaryConfig{
			Path:      "kaikki.org-dictionary-English.jsonl",
			URL:       "https://kaikki.org/dictionary/English/kaikki.org-dictionary-English.jsonl.gz",
			BatchSize: 50000,
			Workers:   4,
		},
		Wordbook: WordbookConfig{Path: "wordbook.csv"},
		Moot: MootConfig{
			EnglishURL: "https://moot.miraheze.org/wiki/Anglish_Wordbook/English_to_Anglish/{letter}",
			AnglishURL: "https://moot.miraheze.org/wiki/Anglish_Wordbook/Anglish_to_English/{letter}",
			Timeout:    "30s",
		},
		WordNet: WordNetConfig{Dir: "english-wordnet", Workers: 4},
		Matcher: MatcherConfig{
			Model:         "gemini-2.5-flash",
			MatchLog:      "matches.jsonl",
			ErrorLog:      "match-errors.txt",
			MaxCandidates: 40,
			Timeout:       "60s",
		},
		Database: DatabaseConfig{Path: "wordbook.db", BatchSize: 500},
		Search:   SearchConfig{RedisAddr: "localhost:6379", Key: "wordbook:search"},
		Logging:  LoggingConfig{Format: "console"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("WORDBOOK_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if c.Matcher.APIKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				c.Matcher.APIKey = v
				break
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Search.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WORDBOOK_DB")); v != "" {
		c.Database.Path = v
	}
}

// Resolve makes every relative path absolute against DataDir. SQLite
// names that are not files (":memory:" and "file:" URIs) stay as given.
func (c *Config) Resolve() {
	join := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.DataDir, *p)
		}
	}
	if c.Database.Path != ":memory:" && !strings.HasPrefix(c.Database.Path, "file:") {
		join(&c.Database.Path)
	}
	join(&c.CacheDir)
	join(&c.OutputDir)
	join(&c.Wiktionary.Path)
	join(&c.Wordbook.Path)
	join(&c.WordNet.Dir)
	join(&c.Matcher.MatchLog)
	join(&c.Matcher.ErrorLog)
}

// Validate reports settings that would make a stage misbehave.
func (c *Config) Validate() error {
	if c.Wiktionary.BatchSize <= 0 {
		return fmt.Errorf("wiktionary.batch_size must be positive, got %d", c.Wiktionary.BatchSize)
	}
	if c.Wiktionary.Workers <= 0 {
		return fmt.Errorf("wiktionary.workers must be positive, got %d", c.Wiktionary.Workers)
	}
	if c.Matcher.MaxCandidates <= 0 {
		return fmt.Errorf("matcher.max_candidates must be positive, got %d", c.Matcher.MaxCandidates)
	}
	for name, v := range map[string]string{
		"moot.timeout":    c.Moot.Timeout,
		"matcher.timeout": c.Matcher.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a validated duration string.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
