package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	Addr           string // ops API bind address, e.g. "127.0.0.1:8080" or ":8080" in Docker
	LogDir         string
	LogLevel       string
	LogStdout      bool
	PublicAPIKeys  []string
	AdminAPIKeys   []string
	AllowedOrigins []string
	RatePerMin     int // per client, 0 disables
	RateBurst      int
	TrustedProxies []string // CIDRs or IPs whose X-Forwarded-For is believed

	StoreDriver string // memory | postgres | sqlite3 | mysql
	DatabaseURL string

	CycleInterval       time.Duration
	CycleAnchor         string // completion | nominal
	StaggerDelay        time.Duration
	MaxConcurrentProbes int // 0 means unbounded
	ProbeTimeout        time.Duration
	ProbeMaxRedirects   int
	ProbeUserAgent      string
	RetryAttempts       int
	RetryBackoff        time.Duration
	DNSDiagnosis        bool
	DowntimeReasonMax   int

	AnalysisEnabled  bool
	AnalysisInterval time.Duration
	AnalysisWarmup   time.Duration
	AnalysisSpacing  time.Duration
	AnalysisFallback bool
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string

	SlackWebhook   string
	BrevoAPIKey    string
	AlertFromEmail string
	AlertFromName  string
	KafkaBrokers   []string
	KafkaTopic     string

	// local runs against the memory store
	SeedTargets         []string
	SeedIntervalSeconds int
	SeedPlan            string
	SeedOwnerEmail      string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_stdout", false)
	v.SetDefault("api_rate_per_min", 120)
	v.SetDefault("api_rate_burst", 60)

	v.SetDefault("store_driver", "")
	v.SetDefault("database_url", "")

	v.SetDefault("cycle_interval", "10s")
	v.SetDefault("cycle_anchor", "completion")
	v.SetDefault("stagger_delay", "200ms")
	v.SetDefault("max_concurrent_probes", 0)
	v.SetDefault("probe_timeout", "30s")
	v.SetDefault("probe_max_redirects", 5)
	v.SetDefault("probe_user_agent", "Uptime-Monitor/1.0")
	v.SetDefault("retry_attempts", 1)
	v.SetDefault("retry_backoff_ms", 300)
	v.SetDefault("dns_diagnosis", false)
	v.SetDefault("downtime_reason_max", 500)

	v.SetDefault("analysis_enabled", true)
	v.SetDefault("analysis_interval", "30m")
	v.SetDefault("analysis_warmup", "5m")
	v.SetDefault("analysis_spacing", "2s")
	v.SetDefault("analysis_fallback", true)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_model", "gpt-4o-mini")

	v.SetDefault("alert_from_email", "alerts@uptime-monitor.local")
	v.SetDefault("alert_from_name", "Uptime Monitor")
	v.SetDefault("kafka_topic", "uptime.transitions")

	v.SetDefault("seed_interval_seconds", 300)
	v.SetDefault("seed_plan", "free")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// Load reads an optional YAML/JSON/TOML file first; environment variables
// still win over file values.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := build(v)
	return cfg, cfg.Validate()
}

func build(v *viper.Viper) Config {
	cfg := Config{
		Addr:           v.GetString("api_addr"),
		LogDir:         v.GetString("log_dir"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		LogStdout:      v.GetBool("log_stdout"),
		PublicAPIKeys:  splitList(v.GetString("public_api_keys")),
		AdminAPIKeys:   splitList(v.GetString("admin_api_keys")),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		RatePerMin:     v.GetInt("api_rate_per_min"),
		RateBurst:      v.GetInt("api_rate_burst"),
		TrustedProxies: splitList(v.GetString("trusted_proxies")),

		StoreDriver: strings.ToLower(v.GetString("store_driver")),
		DatabaseURL: v.GetString("database_url"),

		CycleInterval:       v.GetDuration("cycle_interval"),
		CycleAnchor:         strings.ToLower(v.GetString("cycle_anchor")),
		StaggerDelay:        v.GetDuration("stagger_delay"),
		MaxConcurrentProbes: v.GetInt("max_concurrent_probes"),
		ProbeTimeout:        v.GetDuration("probe_timeout"),
		ProbeMaxRedirects:   v.GetInt("probe_max_redirects"),
		ProbeUserAgent:      v.GetString("probe_user_agent"),
		RetryAttempts:       v.GetInt("retry_attempts"),
		RetryBackoff:        time.Duration(v.GetInt("retry_backoff_ms")) * time.Millisecond,
		DNSDiagnosis:        v.GetBool("dns_diagnosis"),
		DowntimeReasonMax:   v.GetInt("downtime_reason_max"),

		AnalysisEnabled:  v.GetBool("analysis_enabled"),
		AnalysisInterval: v.GetDuration("analysis_interval"),
		AnalysisWarmup:   v.GetDuration("analysis_warmup"),
		AnalysisSpacing:  v.GetDuration("analysis_spacing"),
		AnalysisFallback: v.GetBool("analysis_fallback"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),
		OpenAIModel:      v.GetString("openai_model"),

		SlackWebhook:   v.GetString("slack_webhook_url"),
		BrevoAPIKey:    v.GetString("brevo_api_key"),
		AlertFromEmail: v.GetString("alert_from_email"),
		AlertFromName:  v.GetString("alert_from_name"),
		KafkaBrokers:   splitList(v.GetString("kafka_brokers")),
		KafkaTopic:     v.GetString("kafka_topic"),

		SeedTargets:         splitList(v.GetString("seed_targets")),
		SeedIntervalSeconds: v.GetInt("seed_interval_seconds"),
		SeedPlan:            strings.ToLower(v.GetString("seed_plan")),
		SeedOwnerEmail:      v.GetString("seed_owner_email"),
	}

	// Empty driver picks postgres when a DSN is present, else memory.
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "memory"
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = "postgres"
		}
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.MaxConcurrentProbes < 0 {
		cfg.MaxConcurrentProbes = 0
	}
	if cfg.DowntimeReasonMax <= 0 {
		cfg.DowntimeReasonMax = 500
	}
	return cfg
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	switch c.StoreDriver {
	case "memory":
	case "postgres", "sqlite3", "mysql":
		if c.DatabaseURL == "" {
			err = multierr.Append(err, fmt.Errorf("STORE_DRIVER=%s needs DATABASE_URL", c.StoreDriver))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.CycleInterval <= 0 {
		err = multierr.Append(err, errors.New("CYCLE_INTERVAL must be positive"))
	}
	if c.CycleAnchor != "completion" && c.CycleAnchor != "nominal" {
		err = multierr.Append(err, fmt.Errorf("CYCLE_ANCHOR must be completion or nominal, got %q", c.CycleAnchor))
	}
	if c.StaggerDelay < 0 {
		err = multierr.Append(err, errors.New("STAGGER_DELAY must not be negative"))
	}
	if c.ProbeTimeout <= 0 {
		err = multierr.Append(err, errors.New("PROBE_TIMEOUT must be positive"))
	}
	if c.ProbeMaxRedirects < 0 {
		err = multierr.Append(err, errors.New("PROBE_MAX_REDIRECTS must not be negative"))
	}
	if c.AnalysisEnabled && c.AnalysisInterval <= 0 {
		err = multierr.Append(err, errors.New("ANALYSIS_INTERVAL must be positive"))
	}
	for _, p := range c.TrustedProxies {
		if _, perr := parsePrefix(p); perr != nil {
			err = multierr.Append(err, fmt.Errorf("TRUSTED_PROXIES: %w", perr))
		}
	}
	return err
}

// TrustedProxyPrefixes returns the valid TRUSTED_PROXIES entries. A bare
// IP becomes a single-address prefix.
func (c Config) TrustedProxyPrefixes() []netip.Prefix {
	var out []netip.Prefix
	for _, p := range c.TrustedProxies {
		if pfx, err := parsePrefix(p); err == nil {
			out = append(out, pfx)
		}
	}
	return out
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
