package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "TENDERSCAN_CONFIG"
	cachePathEnv  = "TENDERSCAN_CACHE"
	outputPathEnv = "TENDERSCAN_OUTPUT"
	logLevelEnv   = "TENDERSCAN_LOG_LEVEL"
	headlessEnv   = "TENDERSCAN_HEADLESS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Cache    CacheConfig    `yaml:"cache"`
	Extract  ExtractConfig  `yaml:"extract"`
	Language LanguageConfig `yaml:"language"`
	Match    MatchConfig    `yaml:"match"`
	Output   OutputConfig   `yaml:"output"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Portals  []PortalConfig `yaml:"portals"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CrawlConfig bounds the browser-driven walk over listing pages.
type CrawlConfig struct {
	MaxPages     int           `yaml:"maxPages"`
	Headless     bool          `yaml:"headless"`
	Workers      int           `yaml:"workers"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
}

// CacheConfig describes the on-disk stage cache.
type CacheConfig struct {
	Path  string `yaml:"path"`
	Reset bool   `yaml:"reset"`
}

// ExtractConfig tunes the extraction decision tree.
type ExtractConfig struct {
	// OCRMinCharsPerPage is the floor below which the native PDF text
	// layer is considered a scanned image and OCR takes over.
	OCRMinCharsPerPage int `yaml:"ocrMinCharsPerPage"`
}

// LanguageConfig locates the linguistic model for normalization.
type LanguageConfig struct {
	Code      string `yaml:"code"`
	ModelPath string `yaml:"modelPath"`
	// OCRLanguages are passed to tesseract, e.g. ["kat", "eng"].
	OCRLanguages []string `yaml:"ocrLanguages"`
}

// MatchConfig carries the taxonomy and fuzzy-match policy.
type MatchConfig struct {
	// Taxonomy maps a category name to its keyword phrases.
	Taxonomy  map[string][]string `yaml:"taxonomy"`
	Threshold int                 `yaml:"threshold"`
}

// OutputConfig tells the exporter where results go.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig enables recurring runs via cron expression.
type ScheduleConfig struct {
	CronExpression string `yaml:"cronExpression"`
}

// PortalConfig describes one procurement portal with its scanner strategy
// and the CSS selectors its listing markup uses.
type PortalConfig struct {
	Name      string          `yaml:"name"`
	Scanner   string          `yaml:"scanner"`
	SeedURL   string          `yaml:"seedUrl"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig collects the portal-specific hooks for navigation and
// listing parsing. Defaults match tenders.procurement.gov.ge.
type SelectorsConfig struct {
	Row           string `yaml:"row"`
	TenderID      string `yaml:"tenderId"`
	Title         string `yaml:"title"`
	PublishedDate string `yaml:"publishedDate"`
	DocsLinkText  string `yaml:"docsLinkText"`
	Attachment    string `yaml:"attachment"`
	NextButton    string `yaml:"nextButton"`
	StatusSelect  string `yaml:"statusSelect"`
	StatusOption  string `yaml:"statusOption"`
	SearchButton  string `yaml:"searchButton"`
	BackButton    string `yaml:"backButton"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = loaded
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFile reads a YAML config and merges it over the defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := mergeConfig(defaultConfig(), fileCfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(cachePathEnv); v != "" {
		c.Cache.Path = v
	}

	if v := os.Getenv(outputPathEnv); v != "" {
		c.Output.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(headlessEnv); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Crawl.Headless = parsed
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Crawl.MaxPages != 0 {
		base.Crawl.MaxPages = override.Crawl.MaxPages
	}
	if override.Crawl.Workers != 0 {
		base.Crawl.Workers = override.Crawl.Workers
	}
	if override.Crawl.FetchTimeout != 0 {
		base.Crawl.FetchTimeout = override.Crawl.FetchTimeout
	}
	if override.Crawl.MaxRetries != 0 {
		base.Crawl.MaxRetries = override.Crawl.MaxRetries
	}

	if override.Cache.Path != "" {
		base.Cache.Path = override.Cache.Path
	}
	base.Cache.Reset = override.Cache.Reset

	if override.Extract.OCRMinCharsPerPage != 0 {
		base.Extract.OCRMinCharsPerPage = override.Extract.OCRMinCharsPerPage
	}

	if override.Language.Code != "" {
		base.Language.Code = override.Language.Code
	}
	if override.Language.ModelPath != "" {
		base.Language.ModelPath = override.Language.ModelPath
	}
	if len(override.Language.OCRLanguages) > 0 {
		base.Language.OCRLanguages = override.Language.OCRLanguages
	}

	if len(override.Match.Taxonomy) > 0 {
		base.Match.Taxonomy = override.Match.Taxonomy
	}
	if override.Match.Threshold != 0 {
		base.Match.Threshold = override.Match.Threshold
	}

	if override.Output.Path != "" {
		base.Output.Path = override.Output.Path
	}

	if override.Schedule.CronExpression != "" {
		base.Schedule.CronExpression = override.Schedule.CronExpression
	}

	if len(override.Portals) > 0 {
		base.Portals = override.Portals
		for i := range base.Portals {
			base.Portals[i].Selectors = mergeSelectors(defaultSelectors(), base.Portals[i].Selectors)
			if base.Portals[i].Scanner == "" {
				base.Portals[i].Scanner = "spa"
			}
		}
	}

	return base
}

func mergeSelectors(base, override SelectorsConfig) SelectorsConfig {
	if override.Row != "" {
		base.Row = override.Row
	}
	if override.TenderID != "" {
		base.TenderID = override.TenderID
	}
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.PublishedDate != "" {
		base.PublishedDate = override.PublishedDate
	}
	if override.DocsLinkText != "" {
		base.DocsLinkText = override.DocsLinkText
	}
	if override.Attachment != "" {
		base.Attachment = override.Attachment
	}
	if override.NextButton != "" {
		base.NextButton = override.NextButton
	}
	if override.StatusSelect != "" {
		base.StatusSelect = override.StatusSelect
	}
	if override.StatusOption != "" {
		base.StatusOption = override.StatusOption
	}
	if override.SearchButton != "" {
		base.SearchButton = override.SearchButton
	}
	if override.BackButton != "" {
		base.BackButton = override.BackButton
	}
	return base
}

func defaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		Row:           "#list_apps_by_subject tbody tr",
		TenderID:      "p strong",
		Title:         "p",
		PublishedDate: "td.date",
		DocsLinkText:  "დოკუმენტაცია",
		Attachment:    "div.answ-file a",
		NextButton:    "#btn_next",
		StatusSelect:  "#app_donor_id",
		StatusOption:  "გამარჯვებული გამოვლენილია",
		SearchButton:  "#search_btn",
		BackButton:    "#back_button_2",
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Crawl: CrawlConfig{
			MaxPages:     5,
			Headless:     true,
			Workers:      4,
			FetchTimeout: 60 * time.Second,
			MaxRetries:   3,
		},
		Cache:   CacheConfig{Path: "tenderscan-cache.db"},
		Extract: ExtractConfig{OCRMinCharsPerPage: 50},
		Language: LanguageConfig{
			Code:         "ka",
			ModelPath:    "models/ka-lemmas.tsv",
			OCRLanguages: []string{"kat", "eng"},
		},
		Match:  MatchConfig{Threshold: 90},
		Output: OutputConfig{Path: "found_tenders.json"},
		Portals: []PortalConfig{
			{
				Name:      "procurement-ge",
				Scanner:   "spa",
				SeedURL:   "https://tenders.procurement.gov.ge/public/?lang=ge",
				Selectors: defaultSelectors(),
			},
		},
	}
}
