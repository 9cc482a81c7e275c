package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/photovault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "10s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN           *string         `json:"database_dsn"`
	NetworkDeleteEndpoint *string         `json:"network_delete_endpoint"`
	NetworkSecret         *string         `json:"network_secret"`
	PurgeLimit            *int            `json:"purge_limit"`
	PurgeConcurrency      *int            `json:"purge_concurrency"`
	PurgeMaxAttempts      *int            `json:"purge_max_attempts"`
	PurgeReportInterval   *timex.Duration `json:"purge_report_interval"`
	MetricsAddr           *string         `json:"metrics_addr"`
	StrictLifecycle       *bool           `json:"strict_lifecycle"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. Absent fields keep their current (default) values.
func parseJson(config *Config, path string) error {
	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.NetworkDeleteEndpoint != nil {
		config.NetworkDeleteEndpoint = *c.NetworkDeleteEndpoint
	}
	if c.NetworkSecret != nil {
		config.NetworkSecret = *c.NetworkSecret
	}
	if c.PurgeLimit != nil {
		config.PurgeLimit = *c.PurgeLimit
	}
	if c.PurgeConcurrency != nil {
		config.PurgeConcurrency = *c.PurgeConcurrency
	}
	if c.PurgeMaxAttempts != nil {
		config.PurgeMaxAttempts = *c.PurgeMaxAttempts
	}
	if c.PurgeReportInterval != nil {
		config.PurgeReportInterval = time.Duration(c.PurgeReportInterval.Duration)
	}
	if c.MetricsAddr != nil {
		config.MetricsAddr = *c.MetricsAddr
	}
	if c.StrictLifecycle != nil {
		config.StrictLifecycle = *c.StrictLifecycle
	}
	if c.S3RootUser != nil {
		config.S3RootUser = *c.S3RootUser
	}
	if c.S3RootPassword != nil {
		config.S3RootPassword = *c.S3RootPassword
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}

	return nil
}
