package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/linkup/internal/flagx"
	"github.com/dmitrijs2005/linkup/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations go through timex.Duration so both "10m" and integer
// nanoseconds are accepted. Pointer fields distinguish "absent" from
// "zero" so a partial file only overrides what it names.
type JsonConfig struct {
	HTTPAddr              *string         `json:"http_addr"`
	DatabaseDSN           *string         `json:"database_dsn"`
	DBMaxOpenConns        *int            `json:"db_max_open_conns"`
	DBMaxIdleConns        *int            `json:"db_max_idle_conns"`
	QueryTimeout          *timex.Duration `json:"query_timeout"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	OTPValidityDuration   *timex.Duration `json:"otp_validity_duration"`
	RedisAddr             *string         `json:"redis_addr"`
	RedisPassword         *string         `json:"redis_password"`
	MailQueue             *string         `json:"mail_queue"`
	SMTPHost              *string         `json:"smtp_host"`
	SMTPPort              *int            `json:"smtp_port"`
	SMTPUser              *string         `json:"smtp_user"`
	SMTPPassword          *string         `json:"smtp_password"`
	SMTPFrom              *string         `json:"smtp_from"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
	MaxUploadSize         *int64          `json:"max_upload_size"`
	CORSAllowedOrigins    []string        `json:"cors_allowed_origins"`
	LogBackend            *string         `json:"log_backend"`
	LogLevel              *string         `json:"log_level"`
	RunMigrations         *bool           `json:"run_migrations"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

// parseJson loads configuration values from the JSON file named by the
// -c / -config flag into config. Without the flag nothing is loaded.
// Unreadable files and invalid JSON panic: startup cannot continue with a
// half-applied config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	set(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.QueryTimeout, c.QueryTimeout)
	set(&config.SecretKey, c.SecretKey)
	setDuration(&config.TokenValidityDuration, c.TokenValidityDuration)
	setDuration(&config.OTPValidityDuration, c.OTPValidityDuration)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RedisPassword, c.RedisPassword)
	set(&config.MailQueue, c.MailQueue)
	set(&config.SMTPHost, c.SMTPHost)
	set(&config.SMTPPort, c.SMTPPort)
	set(&config.SMTPUser, c.SMTPUser)
	set(&config.SMTPPassword, c.SMTPPassword)
	set(&config.SMTPFrom, c.SMTPFrom)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.MaxUploadSize, c.MaxUploadSize)
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	set(&config.LogBackend, c.LogBackend)
	set(&config.LogLevel, c.LogLevel)
	set(&config.RunMigrations, c.RunMigrations)
}
