package cfg

import (
	"cmp"
	"fmt"
	"runtime"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"podcomb" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"podcomb" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"podcomb" description:"Database name"`

	// Ingestion configuration
	Limit             int  `long:"limit" env:"LIMIT" default:"360" description:"Maximum number of podcasts to poll per pass"`
	Watch             bool `long:"watch" env:"WATCH" description:"Keep polling continuously instead of running a single pass"`
	Timeout           int  `long:"timeout" env:"TIMEOUT" default:"300" description:"Per-podcast worker budget in seconds"`
	WorkerCount       int  `long:"worker-count" env:"WORKER_COUNT" description:"Number of feed workers (default: number of CPUs)"`
	SchedulerInterval int  `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Seconds between watch-mode passes"`

	// HTTP configuration
	Port      string `long:"port" env:"PORT" default:"8080" description:"Ops HTTP server port (watch mode only)"`
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"Extra user agent string appended to the rotation pool"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		Limit:             raw.Limit,
		Watch:             raw.Watch,
		Timeout:           raw.Timeout,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		Port:              raw.Port,
		UserAgent:         raw.UserAgent,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", cfg.Limit)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %d", cfg.Timeout)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
