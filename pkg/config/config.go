package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	File      *FileConfig     `mapstructure:"file"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin模式: debug, release, test
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// 启动时创建的管理员账号, 用户名为空则跳过
type AuthConfig struct {
	SeedAdmin SeedAdminConfig `mapstructure:"seed_admin"`
}

type SeedAdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Email    string `mapstructure:"email"`
}

type WebSocketConfig struct {
	DeliveryBufferSize int `mapstructure:"delivery_buffer_size"`
	SendBufferSize     int `mapstructure:"send_buffer_size"`

	WriteWaitSeconds int `mapstructure:"write_wait_seconds"`
	PongWaitSeconds  int `mapstructure:"pong_wait_seconds"`
	MaxMessageSize   int `mapstructure:"max_message_size"`
	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms"`
	// 允许的来源, 为空时允许所有来源
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// 投递通道的实现: channel(单实例), kafka, redis
type MessagingConfig struct {
	Provider   string      `mapstructure:"provider"`
	InstanceID string      `mapstructure:"instance_id"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type FileConfig struct {
	StoragePath string   `mapstructure:"storage_path"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	MaxFiles    int      `mapstructure:"max_files"`
	AllowedExts []string `mapstructure:"allowed_exts"`
}

type LogConfig struct {
	Level          string   `mapstructure:"level"`
	ProductionMode bool     `mapstructure:"production_mode"`
	OutputPaths    []string `mapstructure:"output_paths"`
}

var GlobalConfig Config

func Init() error {
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	// .env 可选, 不存在时忽略
	if err := godotenv.Load(filepath.Join(basepath, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(basepath, "config"))
	v.AddConfigPath("config")

	// 环境变量覆盖, 例如 DATABASE_DSN, JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	GlobalConfig = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("messaging.provider", "channel")
	v.SetDefault("messaging.kafka.topic_prefix", "admin_chat")
	v.SetDefault("messaging.redis.channel", "admin_chat:direct")
	v.SetDefault("log.level", "info")
}
