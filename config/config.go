// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendBadger = "badger"
	CacheBackendRedis  = "redis"
)

// Web relevance scorers.
const (
	// WebScorerCoverage scores by the share of query terms a normativa contains.
	WebScorerCoverage = "coverage"
	// WebScorerTFIDF scores by cosine similarity in the local index's TF-IDF space.
	WebScorerTFIDF = "tfidf"
)

// DefaultUserAgent is the browser-like User-Agent sent to gazette sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Category describes one audit type: its record file and the citation fields
// and scraping keywords associated with it.
type Category struct {
	Name            string   `yaml:"name"`
	File            string   `yaml:"file"`
	Description     string   `yaml:"description"`
	NormativaFields []string `yaml:"normativa_fields"`
	Keywords        []string `yaml:"keywords"`
}

// Config holds the static settings of the service.
type Config struct {
	// SimilarityThreshold is the exclusive lower bound for local hits.
	// Default: 0.1
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxFeatures caps the TF-IDF vocabulary size.
	// Default: 5000
	MaxFeatures int `yaml:"max_features"`

	// TopN is the number of local hits returned per question.
	// Default: 6
	TopN int `yaml:"top_n"`

	// MaxResultsPerSource caps scraper results for direct scraping calls.
	// Default: 5
	MaxResultsPerSource int `yaml:"max_results_per_source"`

	// WebResultsPerSource caps scraper results inside a hybrid search.
	// Default: 3
	WebResultsPerSource int `yaml:"web_results_per_source"`

	// MaxScrapeResults caps the merged results of a direct scrape across all
	// sources. Zero means no cap.
	// Default: 10
	MaxScrapeResults int `yaml:"max_scrape_results"`

	// WebScorer selects how scraped normativas are ranked: coverage or tfidf.
	// Default: coverage
	WebScorer string `yaml:"web_scorer"`

	// UseWeb enables web scraping in hybrid searches by default.
	UseWeb bool `yaml:"use_web"`

	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	UserAgent      string        `yaml:"user_agent"`

	// CacheBackend selects the cache implementation: file, badger or redis.
	CacheBackend    string        `yaml:"cache_backend"`
	CacheDir        string        `yaml:"cache_dir"`
	CacheExpiration time.Duration `yaml:"cache_expiration"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPrefix     string        `yaml:"redis_prefix"`

	// DataDir holds one JSON record file per category.
	DataDir    string     `yaml:"data_dir"`
	Categories []Category `yaml:"categories"`

	MinQuestionLength int `yaml:"min_question_length"`
	MaxQuestionLength int `yaml:"max_question_length"`
	HistoryLimit      int `yaml:"history_limit"`

	ListenAddr string `yaml:"listen_addr"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithDataDir sets the record data directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithCacheBackend selects the cache backend.
func WithCacheBackend(backend string) Option {
	return func(c *Config) {
		c.CacheBackend = backend
	}
}

// WithCacheExpiration sets how long cache entries stay valid.
func WithCacheExpiration(d time.Duration) Option {
	return func(c *Config) {
		c.CacheExpiration = d
	}
}

// WithRedisAddr sets the redis address used by the redis cache backend.
func WithRedisAddr(addr string) Option {
	return func(c *Config) {
		c.RedisAddr = addr
	}
}

// WithRetry sets the retry attempts and the backoff base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Config) {
		c.RetryAttempts = attempts
		c.RetryBaseDelay = baseDelay
	}
}

// WithRequestTimeout sets the per-attempt HTTP timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithRequestDelay sets the minimum spacing between requests to one source.
func WithRequestDelay(d time.Duration) Option {
	return func(c *Config) {
		c.RequestDelay = d
	}
}

// WithTaskTimeout sets the per-source bound of a fan-out search.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TaskTimeout = d
	}
}

// WithWebScorer selects the web relevance scorer.
func WithWebScorer(scorer string) Option {
	return func(c *Config) {
		c.WebScorer = scorer
	}
}

// WithUseWeb toggles web scraping in hybrid searches.
func WithUseWeb(enabled bool) Option {
	return func(c *Config) {
		c.UseWeb = enabled
	}
}

// WithListenAddr sets the HTTP listen address.
func WithListenAddr(addr string) Option {
	return func(c *Config) {
		c.ListenAddr = addr
	}
}

// WithCategories replaces the category table.
func WithCategories(categories ...Category) Option {
	return func(c *Config) {
		c.Categories = categories
	}
}

// DefaultCategories returns the built-in audit categories.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:        "Obra Pública",
			File:        "obra_publica.json",
			Description: "Análisis de normativas de construcción, licitaciones y contratación pública",
			NormativaFields: []string{
				"normatividad_local_administracion_directa",
				"normatividad_local_contrato",
				"normatividad_federal_administracion_directa",
				"normatividad_federal_contratacion",
			},
			Keywords: []string{"obras públicas", "licitación", "contratación pública", "construcción", "infraestructura"},
		},
		{
			Name:            "Financiera",
			File:            "financiero.json",
			Description:     "Análisis de normativas contables, presupuestales y de control financiero",
			NormativaFields: []string{"normatividad_local", "normatividad_federal"},
			Keywords:        []string{"contabilidad gubernamental", "presupuesto", "fiscalización", "control interno", "gasto público"},
		},
	}
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		SimilarityThreshold: 0.1,
		MaxFeatures:         5000,
		TopN:                6,
		MaxResultsPerSource: 5,
		WebResultsPerSource: 3,
		MaxScrapeResults:    10,
		WebScorer:           WebScorerCoverage,
		UseWeb:              true,
		RetryAttempts:       3,
		RetryBaseDelay:      time.Second,
		RequestTimeout:      30 * time.Second,
		RequestDelay:        time.Second,
		TaskTimeout:         30 * time.Second,
		UserAgent:           DefaultUserAgent,
		CacheBackend:        CacheBackendFile,
		CacheDir:            "cache_data",
		CacheExpiration:     24 * time.Hour,
		RedisAddr:           "localhost:6379",
		RedisPrefix:         "auditel:cache:",
		DataDir:             "data",
		Categories:          DefaultCategories(),
		MinQuestionLength:   3,
		MaxQuestionLength:   2000,
		HistoryLimit:        10,
		ListenAddr:          ":5020",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML file over the defaults and applies opts on top.
// Keys missing from the file keep their default values.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	if c.CacheBackend == "" {
		c.CacheBackend = CacheBackendFile
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	c.WebScorer = strings.ToLower(strings.TrimSpace(c.WebScorer))
	if c.WebScorer == "" {
		c.WebScorer = WebScorerCoverage
	}
	for i := range c.Categories {
		c.Categories[i].Name = strings.TrimSpace(c.Categories[i].Name)
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: similarity threshold must be in [0, 1)", ErrInvalidConfig)
	}
	if c.MaxFeatures <= 0 {
		return fmt.Errorf("%w: max features must be positive", ErrInvalidConfig)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: top N must be positive", ErrInvalidConfig)
	}
	if c.MaxResultsPerSource <= 0 || c.WebResultsPerSource <= 0 {
		return fmt.Errorf("%w: per-source result caps must be positive", ErrInvalidConfig)
	}
	if c.MaxScrapeResults < 0 {
		return fmt.Errorf("%w: max scrape results cannot be negative", ErrInvalidConfig)
	}
	if c.WebScorer != WebScorerCoverage && c.WebScorer != WebScorerTFIDF {
		return fmt.Errorf("%w: unknown web scorer %q", ErrInvalidConfig, c.WebScorer)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("%w: retry attempts must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 || c.TaskTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.RetryBaseDelay < 0 || c.RequestDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidConfig)
	}
	if c.CacheExpiration <= 0 {
		return fmt.Errorf("%w: cache expiration must be positive", ErrInvalidConfig)
	}
	switch c.CacheBackend {
	case CacheBackendFile, CacheBackendBadger:
		if c.CacheDir == "" {
			return fmt.Errorf("%w: cache dir is required for the %s backend", ErrInvalidConfig, c.CacheBackend)
		}
	case CacheBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis address is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.CacheBackend)
	}
	if c.MinQuestionLength < 0 || (c.MaxQuestionLength > 0 && c.MaxQuestionLength < c.MinQuestionLength) {
		return fmt.Errorf("%w: question length bounds are inconsistent", ErrInvalidConfig)
	}
	if c.HistoryLimit < 2 {
		return fmt.Errorf("%w: history limit must be at least 2", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" || cat.File == "" {
			return fmt.Errorf("%w: categories need a name and a file", ErrInvalidConfig)
		}
		if seen[cat.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidConfig, cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// CategoryNames returns the configured category names in table order.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}

// Category looks up a category by name.
func (c *Config) Category(name string) (Category, bool) {
	i := slices.IndexFunc(c.Categories, func(cat Category) bool { return cat.Name == name })
	if i < 0 {
		return Category{}, false
	}
	return c.Categories[i], true
}
