// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/hamed0406/uptimewatch/internal/config"
)

func main() {
	_ = godotenv.Load()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		fail("configuration invalid")
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty (POST /api/cycle is open).")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured; the ops API accepts every request.")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	ok("API_ADDR=" + cfg.Addr)

	switch cfg.StoreDriver {
	case "memory":
		warn("STORE_DRIVER=memory; status and downtime history are lost on restart.")
		if len(cfg.SeedTargets) == 0 {
			warn("SEED_TARGETS empty; the memory store starts with nothing to monitor.")
		}
	default:
		ok("STORE_DRIVER=" + cfg.StoreDriver + " with DATABASE_URL present")
	}

	ok(fmt.Sprintf("cycle every %s (%s anchor), stagger %s", cfg.CycleInterval, cfg.CycleAnchor, cfg.StaggerDelay))

	channels := 0
	if cfg.SlackWebhook != "" {
		channels++
		ok("Slack alerts enabled")
	}
	if cfg.BrevoAPIKey != "" {
		channels++
		ok("email alerts enabled from " + cfg.AlertFromEmail)
	}
	if len(cfg.KafkaBrokers) > 0 {
		channels++
		ok("Kafka events to topic " + cfg.KafkaTopic)
	}
	if channels == 0 {
		warn("no alert channel configured; transitions are only logged.")
	}

	if cfg.AnalysisEnabled {
		if cfg.OpenAIAPIKey == "" {
			warn("OPENAI_API_KEY empty; analysis uses the rule engine only.")
		} else {
			ok("analysis via " + cfg.OpenAIModel)
		}
	}

	if len(cfg.TrustedProxies) == 0 {
		ok("TRUSTED_PROXIES empty; clients are rate limited by peer address")
	} else {
		ok("TRUSTED_PROXIES=" + strings.Join(cfg.TrustedProxies, ","))
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
