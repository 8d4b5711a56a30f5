package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# CNVIX Configuration
#
# Every key can be overridden from the environment as CNVIX_<SECTION>_<KEY>,
# e.g. CNVIX_ENGINE_RISK_FREE_RATE=0.025. A .env file next to this file is
# read as well.

[engine]
# Annualized continuously compounded risk-free rate
risk_free_rate = 0.03
# Trading days per year used to convert day counts to years
trading_days_per_year = 252
# Index horizon in trading days
target_trading_days = 30
# Parallel day workers (0 = one per CPU)
workers = 0

[input]
# Default option quote CSV
path = ""

[output]
index_path = "CNVIX_daily.csv"
aligned_path = "CNVIX_vs_realized.csv"
# Run database; unset or empty disables persistence
# database_path = "cnvix.db"

[log]
# debug, info, warn, error
level = "info"
console = true
file = false
# Defaults to logs/cnvix.log in the config directory
# file_path = "/var/log/cnvix.log"
# Rotation: megabytes per file, files kept, days kept
max_size = 50
max_backups = 5
max_age = 30
`

// TemplatePath returns where the config template lives in configDir.
func TemplatePath(configDir string) string {
	return filepath.Join(configDir, "config.toml")
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := TemplatePath(configDir)
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
