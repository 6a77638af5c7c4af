package config

import "time"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Vendor     VendorConfig     `mapstructure:"vendor"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	AMQP       AMQPConfig       `mapstructure:"amqp"`
	Audience   AudienceConfig   `mapstructure:"audience"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
}

func (a AppConfig) IsDevelopment() bool {
	return a.Environment == EnvDevelopment
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == EnvProduction
}

type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type VendorConfig struct {
	Provider      string        `mapstructure:"provider"`       // mock, http, sns
	EmailProvider string        `mapstructure:"email_provider"` // none, ses, mock
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	HTTP          HTTPVendor    `mapstructure:"http"`
	Mock          MockVendor    `mapstructure:"mock"`
	AWS           AWSVendor     `mapstructure:"aws"`
}

type HTTPVendor struct {
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	CallbackURL string `mapstructure:"callback_url"`
}

type MockVendor struct {
	SuccessRate float64 `mapstructure:"success_rate"`
}

type AWSVendor struct {
	Region       string `mapstructure:"region"`
	SNSSenderID  string `mapstructure:"sns_sender_id"`
	SESFromEmail string `mapstructure:"ses_from_email"`
	SESSubject   string `mapstructure:"ses_subject"`
}

type DispatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type ReconcilerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	QueueDriver  string        `mapstructure:"queue_driver"` // memory, redis, amqp
	QueueKey     string        `mapstructure:"queue_key"`
	MaxDeferrals int           `mapstructure:"max_deferrals"`
	Embedded     bool          `mapstructure:"embedded"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type AudienceConfig struct {
	PreviewLimit    int           `mapstructure:"preview_limit"`
	PreviewCacheTTL time.Duration `mapstructure:"preview_cache_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)
