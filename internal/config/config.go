package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/wikinote/internal/compress"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendGorm   = "gorm"
	BackendKafka  = "kafka"

	MailLog  = "log"
	MailSMTP = "smtp"
)

// Config is the configuration of the wiki, read from wikinote.yml and WIKINOTE_* variables.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Revision RevisionConfig `mapstructure:"revision"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Mail     MailConfig     `mapstructure:"mail"`
}

type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// Domain is the host suffix of tenant wikis, used in notification subjects.
	Domain string `mapstructure:"domain"`
}

type HTTPConfig struct {
	Port        int      `mapstructure:"port"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// Address returns the listen address of the HTTP server.
func (c HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type QueueConfig struct {
	Backend     string        `mapstructure:"backend"`
	Poll        time.Duration `mapstructure:"poll"`
	Batch       int           `mapstructure:"batch"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Retention   time.Duration `mapstructure:"retention"`
	// StuckAfter is how long a task may stay running before it is handed out again.
	StuckAfter   time.Duration `mapstructure:"stuck_after"`
	KafkaBrokers string        `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
	KafkaGroup   string        `mapstructure:"kafka_group"`
}

type RevisionConfig struct {
	Compression string `mapstructure:"compression"`
}

type BlobConfig struct {
	Dir string `mapstructure:"dir"`
}

type MailConfig struct {
	Sender   string `mapstructure:"sender"`
	From     string `mapstructure:"from"`
	SMTPAddr string `mapstructure:"smtp_addr"`
	SMTPUser string `mapstructure:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("app.domain", "wikinote.me")
	v.SetDefault("http.port", 8030)
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "wikinote.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("queue.backend", BackendGorm)
	v.SetDefault("queue.poll", time.Second)
	v.SetDefault("queue.batch", 50)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.backoff", 2*time.Second)
	v.SetDefault("queue.retention", 7*24*time.Hour)
	v.SetDefault("queue.stuck_after", 10*time.Minute)
	v.SetDefault("queue.kafka_brokers", "")
	v.SetDefault("queue.kafka_topic", "wikinote-tasks")
	v.SetDefault("queue.kafka_group", "wikinote-worker")
	v.SetDefault("revision.compression", compress.GZipName)
	v.SetDefault("blob.dir", "./.data/blobs")
	v.SetDefault("mail.sender", MailLog)
	v.SetDefault("mail.from", "admin@wikinote.me")
	v.SetDefault("mail.smtp_addr", "")
	v.SetDefault("mail.smtp_user", "")
	v.SetDefault("mail.smtp_pass", "")
}

// LoadConfig reads the configuration. A missing config file is fine, defaults and
// the environment cover every key.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("wikinote")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("WIKINOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	kafka := c.Queue.Backend == BackendKafka
	return validation.Errors{
		"app": validation.ValidateStruct(&c.App,
			validation.Field(&c.App.LogLevel, validation.Required, validation.By(isLogLevel)),
			validation.Field(&c.App.LogFormat, validation.In("text", "json")),
		),
		"http": validation.ValidateStruct(&c.HTTP,
			validation.Field(&c.HTTP.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		),
		"db": validation.ValidateStruct(&c.DB,
			validation.Field(&c.DB.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
			validation.Field(&c.DB.DSN, validation.Required),
		),
		"redis": validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Addr, validation.When(c.Cache.Backend == BackendRedis || kafka, validation.Required)),
		),
		"cache": validation.ValidateStruct(&c.Cache,
			validation.Field(&c.Cache.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
		),
		"queue": validation.ValidateStruct(&c.Queue,
			validation.Field(&c.Queue.Backend, validation.Required, validation.In(BackendGorm, BackendKafka)),
			validation.Field(&c.Queue.MaxAttempts, validation.Required, validation.Min(1)),
			validation.Field(&c.Queue.Batch, validation.Required, validation.Min(1)),
			validation.Field(&c.Queue.Poll, validation.Required),
			validation.Field(&c.Queue.KafkaBrokers, validation.When(kafka, validation.Required)),
			validation.Field(&c.Queue.KafkaTopic, validation.When(kafka, validation.Required)),
		),
		"revision": validation.ValidateStruct(&c.Revision,
			validation.Field(&c.Revision.Compression, validation.By(isCodec)),
		),
		"blob": validation.ValidateStruct(&c.Blob,
			validation.Field(&c.Blob.Dir, validation.Required),
		),
		"mail": validation.ValidateStruct(&c.Mail,
			validation.Field(&c.Mail.Sender, validation.Required, validation.In(MailLog, MailSMTP)),
			validation.Field(&c.Mail.From, validation.Required),
			validation.Field(&c.Mail.SMTPAddr, validation.When(c.Mail.Sender == MailSMTP, validation.Required)),
		),
	}.Filter()
}

func isLogLevel(value interface{}) error {
	_, err := logrus.ParseLevel(value.(string))
	return err
}

func isCodec(value interface{}) error {
	_, err := compress.ByName(value.(string))
	return err
}

// ConfigureLogging applies the log level and format.
func ConfigureLogging(cfg AppConfig) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
