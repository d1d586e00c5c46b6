package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/red-atencion/outreach-cli/internal/db"
	"github.com/red-atencion/outreach-cli/internal/evolution"
	"github.com/red-atencion/outreach-cli/internal/intake"
	"github.com/red-atencion/outreach-cli/internal/outcome"
	"github.com/red-atencion/outreach-cli/internal/report"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Zones     ZonesConfig     `yaml:"zones" mapstructure:"zones"`
	Identity  IdentityConfig  `yaml:"identity" mapstructure:"identity"`
	Outcome   OutcomeConfig   `yaml:"outcome" mapstructure:"outcome"`
	Evolution EvolutionConfig `yaml:"evolution" mapstructure:"evolution"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the historical store.
type StoreConfig struct {
	Driver      string         `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string         `yaml:"database_url" mapstructure:"database_url"`
	Pool        *db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// WarehouseConfig configures where the enriched batch is published.
type WarehouseConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	ZonesTable  string `yaml:"zones_table" mapstructure:"zones_table"`
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
}

// ZonesConfig lists zone sets in precedence order. The base partition goes last.
type ZonesConfig struct {
	Sets []zone.SetSpec `yaml:"sets" mapstructure:"sets"`
}

// IdentityConfig overrides the identity vocabularies.
type IdentityConfig struct {
	RefusalPatterns []string `yaml:"refusal_patterns" mapstructure:"refusal_patterns"`
	ForeignPatterns []string `yaml:"foreign_patterns" mapstructure:"foreign_patterns"`
}

// OutcomeConfig overrides the categorizer tables.
type OutcomeConfig struct {
	FuzzyThreshold float64           `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	Exact          map[string]string `yaml:"exact" mapstructure:"exact"`
	Rules          []outcome.Rule    `yaml:"rules" mapstructure:"rules"`
}

// EvolutionConfig configures week bucketing and dedup.
type EvolutionConfig struct {
	WeekStart   string `yaml:"week_start" mapstructure:"week_start"`
	DedupPolicy string `yaml:"dedup_policy" mapstructure:"dedup_policy"`
}

// IntakeConfig configures spreadsheet reading and row filtering.
type IntakeConfig struct {
	SkipRows         int      `yaml:"skip_rows" mapstructure:"skip_rows"`
	SheetIndex       int      `yaml:"sheet_index" mapstructure:"sheet_index"`
	SheetName        string   `yaml:"sheet_name" mapstructure:"sheet_name"`
	Delimiter        string   `yaml:"delimiter" mapstructure:"delimiter"`
	Timezone         string   `yaml:"timezone" mapstructure:"timezone"`
	ExcludedAgencies []string `yaml:"excluded_agencies" mapstructure:"excluded_agencies"`
	PendingStatus    string   `yaml:"pending_status" mapstructure:"pending_status"`
}

// ReportConfig configures the weekly indicators.
type ReportConfig struct {
	Weeks             int    `yaml:"weeks" mapstructure:"weeks"`
	CumulativeSince   string `yaml:"cumulative_since" mapstructure:"cumulative_since"`
	AutomaticCardType string `yaml:"automatic_card_type" mapstructure:"automatic_card_type"`
	TransferCategory  string `yaml:"transfer_category" mapstructure:"transfer_category"`
}

// ServerConfig configures the HTTP intake server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("warehouse.driver", "none")
	v.SetDefault("warehouse.table", "historico_limpio")
	v.SetDefault("warehouse.zones_table", "zonas")
	v.SetDefault("warehouse.csv_path", "historico_limpio.csv")
	v.SetDefault("zones.sets", []map[string]any{{
		"name":        "comunas",
		"path":        "assets/comunas/comunas.shp",
		"kind":        string(zone.KindBase),
		"label_field": "comuna",
	}})
	v.SetDefault("outcome.fuzzy_threshold", outcome.DefaultThreshold)
	v.SetDefault("evolution.week_start", "sunday")
	v.SetDefault("evolution.dedup_policy", string(evolution.KeepLatest))
	v.SetDefault("intake.skip_rows", 1)
	v.SetDefault("intake.sheet_index", 0)
	v.SetDefault("intake.delimiter", ",")
	v.SetDefault("intake.timezone", "UTC")
	v.SetDefault("intake.excluded_agencies", []string{
		"DIPA I COMBATE",
		"MAPA DE RIESGO - SEGUIMIENTO",
		"AREA OPERATIVA",
		"SALUD MENTAL",
	})
	v.SetDefault("intake.pending_status", "PENDIENTE")
	v.SetDefault("report.weeks", 8)
	v.SetDefault("report.cumulative_since", "2025-09-01")
	v.SetDefault("report.automatic_card_type", "AUTOMATICA")
	v.SetDefault("report.transfer_category", outcome.CategoryTransferCIS)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every command depends on. Commands that
// only read the store still need a usable store section.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	switch c.Warehouse.Driver {
	case "", "none":
	case "postgres":
		if c.Warehouse.DatabaseURL == "" && c.Store.Driver != "postgres" {
			errs = append(errs, "warehouse.database_url is required when the store is not postgres")
		}
	case "csv":
		if c.Warehouse.CSVPath == "" {
			errs = append(errs, "warehouse.csv_path is required for the csv warehouse")
		}
	default:
		errs = append(errs, "warehouse.driver must be none, postgres or csv")
	}

	if len(c.Zones.Sets) == 0 {
		errs = append(errs, "zones.sets must list at least one zone set")
	}
	for i, s := range c.Zones.Sets {
		if s.Path == "" {
			errs = append(errs, fmt.Sprintf("zones.sets[%d].path is required", i))
		}
	}

	if c.Outcome.FuzzyThreshold <= 0 || c.Outcome.FuzzyThreshold > 100 {
		errs = append(errs, "outcome.fuzzy_threshold must be above 0 and at most 100")
	}
	if _, err := evolution.ParseWeekStart(c.Evolution.WeekStart); err != nil {
		errs = append(errs, "evolution.week_start must be sunday or monday")
	}
	if _, err := evolution.ParsePolicy(c.Evolution.DedupPolicy); err != nil {
		errs = append(errs, "evolution.dedup_policy must be latest or earliest")
	}
	if c.Intake.SkipRows < 0 {
		errs = append(errs, "intake.skip_rows must be >= 0")
	}
	if _, err := time.LoadLocation(c.Intake.Timezone); err != nil {
		errs = append(errs, "intake.timezone is not a known location")
	}
	if c.Report.Weeks < 1 {
		errs = append(errs, "report.weeks must be >= 1")
	}
	if c.Report.CumulativeSince != "" {
		if _, err := time.Parse(time.DateOnly, c.Report.CumulativeSince); err != nil {
			errs = append(errs, "report.cumulative_since must be YYYY-MM-DD")
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IntakeOptions converts the intake section for the spreadsheet readers.
func (c *Config) IntakeOptions() (intake.Options, error) {
	loc, err := time.LoadLocation(c.Intake.Timezone)
	if err != nil {
		return intake.Options{}, eris.Wrapf(err, "config: timezone %q", c.Intake.Timezone)
	}
	opts := intake.Options{
		SkipRows:   c.Intake.SkipRows,
		SheetIndex: c.Intake.SheetIndex,
		SheetName:  c.Intake.SheetName,
		Location:   loc,
	}
	if d := []rune(c.Intake.Delimiter); len(d) > 0 {
		opts.Delimiter = d[0]
	}
	return opts, nil
}

// EvolutionOptions converts the evolution section.
func (c *Config) EvolutionOptions() (evolution.Options, error) {
	start, err := evolution.ParseWeekStart(c.Evolution.WeekStart)
	if err != nil {
		return evolution.Options{}, err
	}
	policy, err := evolution.ParsePolicy(c.Evolution.DedupPolicy)
	if err != nil {
		return evolution.Options{}, err
	}
	return evolution.Options{WeekStart: start, Policy: policy}, nil
}

// OutcomeOptions converts the outcome section. Empty tables keep the
// built-in defaults.
func (c *Config) OutcomeOptions() outcome.Options {
	opts := outcome.Options{Threshold: c.Outcome.FuzzyThreshold}
	if len(c.Outcome.Exact) > 0 {
		opts.Exact = c.Outcome.Exact
	}
	if len(c.Outcome.Rules) > 0 {
		opts.Rules = c.Outcome.Rules
	}
	return opts
}

// ReportOptions converts the report section.
func (c *Config) ReportOptions() (report.Options, error) {
	opts := report.DefaultOptions()
	if c.Report.Weeks > 0 {
		opts.Weeks = c.Report.Weeks
	}
	opts.Since = time.Time{}
	if c.Report.CumulativeSince != "" {
		since, err := time.Parse(time.DateOnly, c.Report.CumulativeSince)
		if err != nil {
			return report.Options{}, eris.Wrap(err, "config: report.cumulative_since")
		}
		opts.Since = since
	}
	if c.Report.AutomaticCardType != "" {
		opts.AutomaticCardType = c.Report.AutomaticCardType
	}
	if c.Report.TransferCategory != "" {
		opts.TransferCategory = c.Report.TransferCategory
	}
	return opts, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
