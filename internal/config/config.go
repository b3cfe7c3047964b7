package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Piston    PistonConfig
	Queue     QueueConfig
	Content   ContentConfig   `mapstructure:"content"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PistonConfig 代码沙箱(Piston)执行接口配置
// 超时单位毫秒，内存上限 -1 表示不限制
type PistonConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	RunTimeout         int               `mapstructure:"run_timeout"`
	CompileTimeout     int               `mapstructure:"compile_timeout"`
	RunMemoryLimit     int               `mapstructure:"run_memory_limit"`
	CompileMemoryLimit int               `mapstructure:"compile_memory_limit"`
	Languages          map[string]string `mapstructure:"languages"`
}

// QueueConfig 判题任务队列配置
type QueueConfig struct {
	Name    string
	Workers int
}

// ContentConfig 内容服务(题库)内部接口地址
type ContentConfig struct {
	ServiceURL string `mapstructure:"service_url"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("GRADING")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Piston
	viper.BindEnv("piston.base_url", "PISTON_BASE_URL")
	viper.BindEnv("piston.run_timeout", "PISTON_RUN_TIMEOUT")
	viper.BindEnv("piston.compile_timeout", "PISTON_COMPILE_TIMEOUT")

	// Queue
	viper.BindEnv("queue.name", "QUEUE_NAME")
	viper.BindEnv("queue.workers", "QUEUE_WORKERS")

	// Content service
	viper.BindEnv("content.service_url", "CONTENT_SERVICE_URL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	viper.SetDefault("server.port", "8084")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("piston.base_url", "http://localhost:2000/api/v2/execute")
	viper.SetDefault("piston.run_timeout", 5000)
	viper.SetDefault("piston.compile_timeout", 10000)
	viper.SetDefault("piston.run_memory_limit", -1)
	viper.SetDefault("piston.compile_memory_limit", -1)
	viper.SetDefault("queue.name", "grading-jobs-queue")
	viper.SetDefault("queue.workers", 4)
	viper.SetDefault("content.service_url", "http://content-service:8083")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
