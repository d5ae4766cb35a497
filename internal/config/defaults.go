package config

import "time"

const (
	// DefaultServerPort is the HTTP port for serve mode.
	DefaultServerPort = 8080

	// DefaultRubricDir is where rubric documents are looked up.
	DefaultRubricDir = "rubrics"

	// DefaultPoolMaxTotal caps a pool that does not configure its own.
	DefaultPoolMaxTotal = 4

	// DefaultIdleTTL is how long a surplus idle sandbox survives.
	DefaultIdleTTL = 10 * time.Minute

	// DefaultRunningTTL bounds a single submission's sandbox occupancy.
	DefaultRunningTTL = 2 * time.Minute

	// DefaultAcquireWait bounds how long a saturated acquire blocks.
	DefaultAcquireWait = 30 * time.Second
)

// DefaultServiceConfig returns the configuration used when no config file
// is present. No pools are configured by default; serve mode refuses to
// start without at least one.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Server: ServerConfig{
			Host: "localhost",
			Port: DefaultServerPort,
		},
		Rubrics: RubricsConfig{
			Dir:   DefaultRubricDir,
			Watch: true,
		},
		Sandbox: SandboxConfig{
			Memory:    "256m",
			CPUs:      "0.5",
			PidsLimit: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
