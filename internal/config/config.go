package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the shared daemon configuration. The config file is the
// historical colon-separated "key: value" format, which parses as a flat
// YAML mapping.
type Config struct {
	DBServer   string `yaml:"db_server"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`

	NRUser     string `yaml:"nr_user"`
	NRPassword string `yaml:"nr_password"`
	NRServer   string `yaml:"nr_server"`

	// Direct-broker mode. When StompServer is set and StompyPort is zero the
	// consumers subscribe straight to the Network Rail broker instead of the
	// local stompy proxy.
	StompServer   string `yaml:"stomp_server"`
	StompUser     string `yaml:"stomp_user"`
	StompPassword string `yaml:"stomp_password"`
	StompyPort    int    `yaml:"stompy_port"`

	Debug        bool   `yaml:"debug"`
	HuytonAlerts bool   `yaml:"huyton_alerts"`
	PublicURL    string `yaml:"public_url"`
	LiveServer   bool   `yaml:"live_server"`

	TrustNoDeduceAct bool `yaml:"trustdb_no_deduce_act"`

	SMTPServer  string `yaml:"smtp_server"`
	ReportEmail string `yaml:"report_email"`

	TmpDir          string `yaml:"tmp_dir"`
	OpsPort         int    `yaml:"ops_port"`
	DeferredQueue   int    `yaml:"deferred_queue_len"`
	DeferredRetryS  int    `yaml:"deferred_retry_secs"`
	LatencyAlertMs  int    `yaml:"latency_alert_ms"`
	DailyReportHour int    `yaml:"daily_report_hour"`
	DailyReportMin  int    `yaml:"daily_report_min"`
}

// Load reads the config file and applies defaults. A .env file alongside the
// process, if present, overlays credential fields so they can be kept out of
// the shared config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg := defaults()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	_ = godotenv.Load() // optional; absence is not an error
	overlayEnv(cfg)

	if cfg.DBName == "" || cfg.DBUser == "" {
		return nil, fmt.Errorf("config: db_name and db_user are required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DBServer:        "localhost",
		TmpDir:          "/tmp",
		StompyPort:      55840,
		DeferredQueue:   16,
		DeferredRetryS:  32,
		LatencyAlertMs:  64000,
		DailyReportHour: 4,
		DailyReportMin:  2,
	}
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("OPENRAIL_DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("OPENRAIL_NR_PASSWORD"); v != "" {
		cfg.NRPassword = v
	}
	if v := os.Getenv("OPENRAIL_STOMP_PASSWORD"); v != "" {
		cfg.StompPassword = v
	}
}

// ConnString builds the lib/pq connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s dbname=%s user=%s password=%s sslmode=disable",
		c.DBServer, c.DBName, c.DBUser, c.DBPassword)
}
