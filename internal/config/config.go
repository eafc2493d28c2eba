package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env        string
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Exchange   ExchangeConfig
	Risk       RiskConfig
	Executor   ExecutorConfig
	Scheduler  SchedulerConfig
	Daily      DailyConfig
	Settlement SettlementConfig
	Notify     NotifyConfig
}

type ServerConfig struct {
	Port    string
	AppName string `mapstructure:"app_name"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ExchangeConfig 交易所接入配置
// Mode: "paper" 使用本地模拟撮合, "binance" 使用真实账户
type ExchangeConfig struct {
	Mode        string
	Platform    string
	Testnet     bool
	PaperPrices map[string]float64 `mapstructure:"paper_prices"`
}

// RiskConfig 风控阈值
type RiskConfig struct {
	AllowedSymbols []string      `mapstructure:"allowed_symbols"`
	MinOrderValue  float64       `mapstructure:"min_order_value"`
	MaxOrderValue  float64       `mapstructure:"max_order_value"`
	MaxDailyOrders int           `mapstructure:"max_daily_orders"`
	MaxSlippage    float64       `mapstructure:"max_slippage"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
}

// ExecutorConfig 下单重试策略
type ExecutorConfig struct {
	Retries     int
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type SchedulerConfig struct {
	Interval       time.Duration
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// DailyConfig 日终汇总与排行榜
type DailyConfig struct {
	SummaryCron     string `mapstructure:"summary_cron"`
	LeaderboardCron string `mapstructure:"leaderboard_cron"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
	LeaderboardSize int    `mapstructure:"leaderboard_size"`
}

type SettlementConfig struct {
	PlatformFeeRate float64 `mapstructure:"platform_fee_rate"`
	Tier1Rate       float64 `mapstructure:"tier1_rate"`
	Tier2Rate       float64 `mapstructure:"tier2_rate"`
	PlatformAccount string  `mapstructure:"platform_account"`
}

type NotifyConfig struct {
	// 单次运行收益率 (%) 超过该值时通知
	HighEarningsPercent float64 `mapstructure:"high_earnings_percent"`
	// 用户单日净收益 (计价货币) 超过该值时通知
	DailyHighEarnings float64 `mapstructure:"daily_high_earnings"`
	BusBuffer         int     `mapstructure:"bus_buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.app_name", "stratrunner")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stratrunner")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.table_prefix", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("exchange.mode", "paper")
	v.SetDefault("exchange.platform", "binance")
	v.SetDefault("exchange.testnet", false)
	v.SetDefault("exchange.paper_prices", map[string]float64{
		"BTCUSDT": 65000,
		"ETHUSDT": 3200,
	})

	// 风控默认值
	v.SetDefault("risk.allowed_symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("risk.min_order_value", 10.0)
	v.SetDefault("risk.max_order_value", 1000.0)
	v.SetDefault("risk.max_daily_orders", 50)
	v.SetDefault("risk.max_slippage", 0.005)
	v.SetDefault("risk.cooldown", time.Second)

	v.SetDefault("executor.retries", 3)
	v.SetDefault("executor.base_delay", time.Second)
	v.SetDefault("executor.call_timeout", 10*time.Second)

	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.max_concurrency", 16)

	v.SetDefault("daily.summary_cron", "0 0 * * *")
	v.SetDefault("daily.leaderboard_cron", "5 0 * * *")
	v.SetDefault("daily.run_on_start", false)
	v.SetDefault("daily.leaderboard_size", 10)

	v.SetDefault("settlement.platform_fee_rate", 0.10)
	v.SetDefault("settlement.tier1_rate", 0.20)
	v.SetDefault("settlement.tier2_rate", 0.10)
	v.SetDefault("settlement.platform_account", "platform")

	v.SetDefault("notify.high_earnings_percent", 5.0)
	v.SetDefault("notify.daily_high_earnings", 1000.0)
	v.SetDefault("notify.bus_buffer", 256)
}

// Load 读取配置文件并叠加环境变量 (risk.max_order_value -> RISK_MAX_ORDER_VALUE)
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Printf("Warning: config file not found, using defaults and env")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to load config, %v", err)
	}
	return cfg
}

// Validate 检查互相关联的配置项
func (c *Config) Validate() error {
	if c.Risk.MinOrderValue < 0 || c.Risk.MaxOrderValue < c.Risk.MinOrderValue {
		return fmt.Errorf("config: risk order value range [%v, %v] is invalid", c.Risk.MinOrderValue, c.Risk.MaxOrderValue)
	}
	if c.Executor.Retries < 1 {
		return fmt.Errorf("config: executor.retries must be at least 1")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("config: scheduler.interval must be positive")
	}
	rates := c.Settlement.PlatformFeeRate + c.Settlement.Tier1Rate + c.Settlement.Tier2Rate
	if c.Settlement.PlatformFeeRate < 0 || c.Settlement.Tier1Rate < 0 || c.Settlement.Tier2Rate < 0 || rates > 1 {
		return fmt.Errorf("config: settlement rates must be non-negative and sum to at most 1")
	}
	switch c.Exchange.Mode {
	case "paper", "binance":
	default:
		return fmt.Errorf("config: unknown exchange.mode %q", c.Exchange.Mode)
	}
	return nil
}
