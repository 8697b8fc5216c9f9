package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 持久化存储配置
	Faceit   SourceConfig   `mapstructure:"faceit"`   // 比赛数据源配置
	Discord  DiscordConfig  `mapstructure:"discord"`  // 聊天平台配置
	Sync     SyncConfig     `mapstructure:"sync"`     // 调和调度与阈值配置
	Lock     LockConfig     `mapstructure:"lock"`     // 变更锁配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 持久化存储配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`            // sqlite / postgres
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// SourceConfig 比赛数据源（FACEIT风格 Data API）配置
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // API基础地址
	APIKey         string `mapstructure:"api_key"`         // Bearer API Key
	ChampionshipID string `mapstructure:"championship_id"` // 追踪的赛事ID
	TeamID         string `mapstructure:"team_id"`         // 本队伍ID（出勤名单来源）
	Timeout        int    `mapstructure:"timeout"`         // 请求超时（秒）
	Proxy          string `mapstructure:"proxy"`           // 代理地址
}

// DiscordConfig 聊天平台REST配置
type DiscordConfig struct {
	BaseURL   string `mapstructure:"base_url"`   // REST基础地址
	BotToken  string `mapstructure:"bot_token"`  // Bot令牌
	GuildID   string `mapstructure:"guild_id"`   // 服务器ID（列举活跃子区用）
	ChannelID string `mapstructure:"channel_id"` // 创建子区的目标频道ID
	Timeout   int    `mapstructure:"timeout"`    // 请求超时（秒）
	Proxy     string `mapstructure:"proxy"`      // 代理地址
}

// SyncConfig 调和调度与统一阈值配置。阈值只在这里定义一份。
type SyncConfig struct {
	Cron               string        `mapstructure:"cron"`                 // 后台扫描Cron表达式
	OverdueAfter       time.Duration `mapstructure:"overdue_after"`        // 开赛后多久仍未确认则告警
	FinishedRetention  time.Duration `mapstructure:"finished_retention"`   // FINISHED比赛可转换的保留窗口
	LockAfter          time.Duration `mapstructure:"lock_after"`           // finished子区多久后锁定
	PurgeAfter         time.Duration `mapstructure:"purge_after"`          // 结束多久后整体清除
	FinishedFetchLimit int           `mapstructure:"finished_fetch_limit"` // 拉取最近结束比赛的上限
}

// LockConfig 变更锁配置
type LockConfig struct {
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"` // 锁获取超时
	MaxAttempts    int           `mapstructure:"max_attempts"`    // 存储繁忙时的最大重试次数
	InitialBackoff time.Duration `mapstructure:"initial_backoff"` // 首次退避间隔
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("FACEIT_API_KEY"); v != "" {
		cfg.Faceit.APIKey = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// ApplyDefaults 未配置的阈值落到统一默认值
func ApplyDefaults(cfg *Config) {
	if cfg.Sync.Cron == "" {
		cfg.Sync.Cron = "*/5 * * * *"
	}
	if cfg.Sync.OverdueAfter <= 0 {
		cfg.Sync.OverdueAfter = 4 * time.Hour
	}
	if cfg.Sync.FinishedRetention <= 0 {
		cfg.Sync.FinishedRetention = 7 * 24 * time.Hour
	}
	if cfg.Sync.LockAfter <= 0 {
		cfg.Sync.LockAfter = 72 * time.Hour
	}
	if cfg.Sync.PurgeAfter <= 0 {
		cfg.Sync.PurgeAfter = 30 * 24 * time.Hour
	}
	if cfg.Sync.FinishedFetchLimit <= 0 {
		cfg.Sync.FinishedFetchLimit = 20
	}
	if cfg.Lock.AcquireTimeout <= 0 {
		cfg.Lock.AcquireTimeout = 10 * time.Second
	}
	if cfg.Lock.MaxAttempts <= 0 {
		cfg.Lock.MaxAttempts = 5
	}
	if cfg.Lock.InitialBackoff <= 0 {
		cfg.Lock.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "data/bot.db"
	}
}
