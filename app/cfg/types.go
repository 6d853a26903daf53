package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Ingestion configuration
	Limit             int
	Watch             bool
	Timeout           int // per-job budget, seconds
	WorkerCount       int
	SchedulerInterval int // seconds between watch-mode passes

	// HTTP configuration
	Port      string
	UserAgent string

	// Application metadata
	Debug   bool
	Version string
}
