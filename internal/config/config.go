package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "HOSTMATCH"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
	Notification NotificationConfig `mapstructure:"notification"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type MatchingConfig struct {
	Policy             string        `mapstructure:"policy"`
	ConfirmationWindow time.Duration `mapstructure:"confirmation_window"`
}

type JobSchedule struct {
	Cron     string        `mapstructure:"cron"`
	Interval time.Duration `mapstructure:"interval"`
}

type SchedulerConfig struct {
	// Mode is "temporal", "ticker" or "off".
	Mode        string        `mapstructure:"mode"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	PollHosts   JobSchedule   `mapstructure:"poll_hosts"`
	ExpireSweep JobSchedule   `mapstructure:"expire_sweep"`
	RunMatching JobSchedule   `mapstructure:"run_matching"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type WhatsAppConfig struct {
	APIURL        string `mapstructure:"api_url"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	AppSecret     string `mapstructure:"app_secret"` // verifies inbound webhook signatures when set
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type NotificationConfig struct {
	SendTimeout time.Duration  `mapstructure:"send_timeout"`
	DevMode     bool           `mapstructure:"dev_mode"`
	WhatsApp    WhatsAppConfig `mapstructure:"whatsapp"`
	NATS        NATSConfig     `mapstructure:"nats"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 72*time.Hour)
	v.SetDefault("matching.policy", "first_eligible")
	v.SetDefault("matching.confirmation_window", 24*time.Hour)
	v.SetDefault("scheduler.mode", "ticker")
	v.SetDefault("scheduler.job_timeout", 5*time.Minute)
	v.SetDefault("scheduler.poll_hosts.cron", "0 9 * * MON")
	v.SetDefault("scheduler.poll_hosts.interval", 7*24*time.Hour)
	v.SetDefault("scheduler.expire_sweep.cron", "*/15 * * * *")
	v.SetDefault("scheduler.expire_sweep.interval", 15*time.Minute)
	v.SetDefault("scheduler.run_matching.cron", "*/10 * * * *")
	v.SetDefault("scheduler.run_matching.interval", 10*time.Minute)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "HOSTMATCH_SCHEDULER")
	v.SetDefault("notification.send_timeout", 10*time.Second)
	v.SetDefault("notification.dev_mode", false)
	v.SetDefault("notification.whatsapp.api_url", "https://graph.facebook.com/v17.0")
	v.SetDefault("notification.whatsapp.phone_number_id", "")
	v.SetDefault("notification.whatsapp.access_token", "")
	v.SetDefault("notification.whatsapp.app_secret", "")
	v.SetDefault("notification.nats.url", "")
	v.SetDefault("notification.nats.subject_prefix", "hostmatch.notifications")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.lock_ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads config.yaml from path, or from the current directory and ./config
// when path is empty. A .env file is loaded first when present, and every key
// can be overridden by HOSTMATCH_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Look for config in the current directory and ./config
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url must be set for the postgres driver")
		}
	default:
		return errors.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Scheduler.Mode {
	case "temporal", "ticker", "off":
	default:
		return errors.Errorf("unknown scheduler.mode %q", c.Scheduler.Mode)
	}
	if !c.Notification.DevMode && c.Notification.WhatsApp.PhoneNumberID == "" {
		return errors.New("notification.whatsapp.phone_number_id must be set unless notification.dev_mode is on")
	}
	return nil
}
