package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Level     LevelConfig     `mapstructure:"level"`
	Streak    StreakConfig    `mapstructure:"streak"`
	Reward    RewardConfig    `mapstructure:"reward"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port     int      `mapstructure:"port"`
	Debug    bool     `mapstructure:"debug"`
	AdminKey string   `mapstructure:"admin_key"`
	AdminIPs []string `mapstructure:"admin_ips"` // empty = any address
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	PostgresDSN  string        `mapstructure:"postgres_dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// LevelConfig shapes the experience curve: the marginal cost of level n is
// Base * n^Exponent.
type LevelConfig struct {
	Base      float64 `mapstructure:"base"`
	Exponent  float64 `mapstructure:"exponent"`
	MaxLevel  int     `mapstructure:"max_level"`
	CacheSize int     `mapstructure:"cache_size"`
}

type StreakConfig struct {
	FreezesPerWeek int    `mapstructure:"freezes_per_week"`
	MaxFreezes     int    `mapstructure:"max_freezes"`
	Timezone       string `mapstructure:"timezone"`
}

// RewardValue is a fixed xp/coin pair.
type RewardValue struct {
	XP    int64 `mapstructure:"xp"`
	Coins int64 `mapstructure:"coins"`
}

// RewardBand is an inclusive xp/coin range for a task tier.
type RewardBand struct {
	MinXP    int64 `mapstructure:"min_xp"`
	MaxXP    int64 `mapstructure:"max_xp"`
	MinCoins int64 `mapstructure:"min_coins"`
	MaxCoins int64 `mapstructure:"max_coins"`
}

// ClassBonus holds fractional bonuses, 0.1 = +10%.
type ClassBonus struct {
	XP    float64 `mapstructure:"xp"`
	Coins float64 `mapstructure:"coins"`
}

type CombatRewardConfig struct {
	WinnerBaseXP     int64 `mapstructure:"winner_base_xp"`
	WinnerXPPerLevel int64 `mapstructure:"winner_xp_per_level"`
	LoserXP          int64 `mapstructure:"loser_xp"`
}

type RewardConfig struct {
	Habit                     map[string]RewardValue `mapstructure:"habit"`
	Task                      map[string]RewardBand  `mapstructure:"task"`
	Classes                   map[string]ClassBonus  `mapstructure:"classes"`
	StreakIncrement           float64                `mapstructure:"streak_increment"`
	StreakCap                 float64                `mapstructure:"streak_cap"`
	IntelligenceBonusPerPoint float64                `mapstructure:"intelligence_bonus_per_point"`
	IntelligenceBonusCap      float64                `mapstructure:"intelligence_bonus_cap"`
	EarlyCompletionBonus      float64                `mapstructure:"early_completion_bonus"`
	StatPointsPerLevel        int                    `mapstructure:"stat_points_per_level"`
	Combat                    CombatRewardConfig     `mapstructure:"combat"`
}

type CombatConfig struct {
	BaseHP                int     `mapstructure:"base_hp"`
	HPPerEndurance        int     `mapstructure:"hp_per_endurance"`
	DodgeCoefficient      float64 `mapstructure:"dodge_coefficient"`
	DodgeCap              float64 `mapstructure:"dodge_cap"`
	DamageVariance        float64 `mapstructure:"damage_variance"`
	CritCoefficient       float64 `mapstructure:"crit_coefficient"`
	CritCap               float64 `mapstructure:"crit_cap"`
	CritMultiplier        float64 `mapstructure:"crit_multiplier"`
	MitigationCoefficient float64 `mapstructure:"mitigation_coefficient"`
	MitigationCap         float64 `mapstructure:"mitigation_cap"`
	MaxTurns              int     `mapstructure:"max_turns"`
}

type EngineConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

type EvaluatorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	FallbackTier   string        `mapstructure:"fallback_tier"`
}

type SchedulerConfig struct {
	FreezeReplenishWeekday string        `mapstructure:"freeze_replenish_weekday"`
	FreezeReplenishHour    uint          `mapstructure:"freeze_replenish_hour"`
	EvaluationInterval     time.Duration `mapstructure:"evaluation_interval"`
	EvaluationBatchSize    int           `mapstructure:"evaluation_batch_size"`
	EvaluationConcurrency  int           `mapstructure:"evaluation_concurrency"`
	RankingRefreshInterval time.Duration `mapstructure:"ranking_refresh_interval"`
}

// Load reads config from the given YAML file path. Environment variables
// prefixed with HABITQUEST_ override file values (server.port →
// HABITQUEST_SERVER_PORT).
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("habitquest")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	// Keys without a useful default still need one so HABITQUEST_ variables
	// reach Unmarshal.
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.admin_ips", []string{})
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/habits.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)

	v.SetDefault("level.base", 50)
	v.SetDefault("level.exponent", 1.5)
	v.SetDefault("level.max_level", 200)
	v.SetDefault("level.cache_size", 256)

	v.SetDefault("streak.freezes_per_week", 1)
	v.SetDefault("streak.max_freezes", 3)
	v.SetDefault("streak.timezone", "UTC")

	v.SetDefault("reward.habit", map[string]interface{}{
		"trivial": map[string]interface{}{"xp": 5, "coins": 2},
		"easy":    map[string]interface{}{"xp": 15, "coins": 5},
		"medium":  map[string]interface{}{"xp": 25, "coins": 10},
		"hard":    map[string]interface{}{"xp": 40, "coins": 15},
	})
	v.SetDefault("reward.task", map[string]interface{}{
		"trivial":   band(5, 10, 1, 3),
		"easy":      band(10, 25, 3, 8),
		"medium":    band(25, 50, 8, 15),
		"hard":      band(50, 100, 15, 30),
		"epic":      band(100, 200, 30, 60),
		"legendary": band(200, 500, 60, 150),
	})
	v.SetDefault("reward.classes", map[string]interface{}{
		"warrior": map[string]interface{}{"xp": 0.0, "coins": 0.05},
		"mage":    map[string]interface{}{"xp": 0.10, "coins": 0.0},
		"rogue":   map[string]interface{}{"xp": 0.0, "coins": 0.10},
		"cleric":  map[string]interface{}{"xp": 0.05, "coins": 0.05},
	})
	v.SetDefault("reward.streak_increment", 0.02)
	v.SetDefault("reward.streak_cap", 2.0)
	v.SetDefault("reward.intelligence_bonus_per_point", 0.005)
	v.SetDefault("reward.intelligence_bonus_cap", 0.25)
	v.SetDefault("reward.early_completion_bonus", 0.10)
	v.SetDefault("reward.stat_points_per_level", 3)
	v.SetDefault("reward.combat.winner_base_xp", 50)
	v.SetDefault("reward.combat.winner_xp_per_level", 5)
	v.SetDefault("reward.combat.loser_xp", 10)

	v.SetDefault("combat.base_hp", 100)
	v.SetDefault("combat.hp_per_endurance", 10)
	v.SetDefault("combat.dodge_coefficient", 0.01)
	v.SetDefault("combat.dodge_cap", 0.35)
	v.SetDefault("combat.damage_variance", 0.15)
	v.SetDefault("combat.crit_coefficient", 0.01)
	v.SetDefault("combat.crit_cap", 0.30)
	v.SetDefault("combat.crit_multiplier", 1.5)
	v.SetDefault("combat.mitigation_coefficient", 0.01)
	v.SetDefault("combat.mitigation_cap", 0.60)
	v.SetDefault("combat.max_turns", 50)

	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.retry_backoff", "50ms")
	v.SetDefault("engine.lock_ttl", "10s")

	v.SetDefault("evaluator.enabled", false)
	v.SetDefault("evaluator.base_url", "http://localhost:11434")
	v.SetDefault("evaluator.model", "qwen3:8b")
	v.SetDefault("evaluator.max_retries", 3)
	v.SetDefault("evaluator.initial_backoff", "1s")
	v.SetDefault("evaluator.max_backoff", "16s")
	v.SetDefault("evaluator.attempt_timeout", "30s")
	v.SetDefault("evaluator.rate_limit_rps", 1)
	v.SetDefault("evaluator.rate_limit_burst", 2)
	v.SetDefault("evaluator.fallback_tier", "medium")

	v.SetDefault("scheduler.freeze_replenish_weekday", "monday")
	v.SetDefault("scheduler.freeze_replenish_hour", 0)
	v.SetDefault("scheduler.evaluation_interval", "1m")
	v.SetDefault("scheduler.evaluation_batch_size", 20)
	v.SetDefault("scheduler.evaluation_concurrency", 2)
	v.SetDefault("scheduler.ranking_refresh_interval", "5m")
	return v
}

func band(minXP, maxXP, minCoins, maxCoins int) map[string]interface{} {
	return map[string]interface{}{
		"min_xp": minXP, "max_xp": maxXP,
		"min_coins": minCoins, "max_coins": maxCoins,
	}
}

// Validate rejects tuning values the rules engine cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Level.Base < 1 {
		errs = append(errs, errors.New("level.base must be >= 1"))
	}
	if c.Level.Exponent <= 1 {
		errs = append(errs, errors.New("level.exponent must be > 1"))
	}
	if c.Level.MaxLevel < 2 {
		errs = append(errs, errors.New("level.max_level must be >= 2"))
	}
	if c.Reward.StreakCap < 1 {
		errs = append(errs, errors.New("reward.streak_cap must be >= 1.0"))
	}
	if c.Reward.StreakIncrement < 0 {
		errs = append(errs, errors.New("reward.streak_increment must be >= 0"))
	}
	for tier, b := range c.Reward.Task {
		if b.MinXP < 0 || b.MinCoins < 0 || b.MaxXP < b.MinXP || b.MaxCoins < b.MinCoins {
			errs = append(errs, fmt.Errorf("reward.task.%s: invalid band", tier))
		}
	}
	if c.Combat.MaxTurns <= 0 {
		errs = append(errs, errors.New("combat.max_turns must be > 0"))
	}
	if c.Combat.BaseHP <= 0 || c.Combat.HPPerEndurance < 0 {
		errs = append(errs, errors.New("combat.base_hp must be > 0 and combat.hp_per_endurance >= 0"))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"combat.mitigation_cap", c.Combat.MitigationCap},
		{"combat.dodge_cap", c.Combat.DodgeCap},
		{"combat.crit_cap", c.Combat.CritCap},
	} {
		if f.v < 0 || f.v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1]", f.name))
		}
	}
	if c.Combat.DamageVariance < 0 || c.Combat.DamageVariance >= 1 {
		errs = append(errs, errors.New("combat.damage_variance must be in [0,1)"))
	}
	if c.Streak.MaxFreezes < 0 || c.Streak.FreezesPerWeek < 0 {
		errs = append(errs, errors.New("streak freeze settings must be >= 0"))
	}
	if _, err := time.LoadLocation(c.Streak.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("streak.timezone: %w", err))
	}
	return errors.Join(errs...)
}
