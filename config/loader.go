// =============================================================================
// 📦 AgentChat 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTCHAT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentChat 的完整配置结构
type Config struct {
	// Chat 群聊编排配置
	Chat ChatConfig `yaml:"chat" env:"CHAT"`

	// Session 会话存储配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Summary 摘要配置
	Summary SummaryConfig `yaml:"summary" env:"SUMMARY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ChatConfig 群聊编排配置
type ChatConfig struct {
	// 参与者名单，按发言顺序
	Participants []string `yaml:"participants" env:"PARTICIPANTS"`
	// 每个参与者的发言轮数上限
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// 终止策略: fixed_count, convergence
	Policy string `yaml:"policy" env:"POLICY"`
	// 收敛评判模型名
	JudgeModel string `yaml:"judge_model" env:"JUDGE_MODEL"`
	// 送入收敛评判的最近发言条数
	JudgeWindow int `yaml:"judge_window" env:"JUDGE_WINDOW"`
	// 收敛终止前的最小响应数，0 表示使用参与者数
	MinResponses int `yaml:"min_responses" env:"MIN_RESPONSES"`
	// Provider 调用速率限制（每秒请求数），0 表示不限速
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	// 后端类型: memory, redis
	Type string `yaml:"type" env:"TYPE"`
	// 空闲会话清理阈值，0 表示不清理（仅 memory 后端）
	MaxIdle time.Duration `yaml:"max_idle" env:"MAX_IDLE"`
	// Redis 后端配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 会话过期时间，0 表示不过期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// SummaryConfig 摘要配置
type SummaryConfig struct {
	// 摘要模型名
	Model string `yaml:"model" env:"MODEL"`
	// 转写 token 预算
	TranscriptTokenBudget int `yaml:"transcript_token_budget" env:"TRANSCRIPT_TOKEN_BUDGET"`
	// 单条发言字符上限
	SnippetMaxChars int `yaml:"snippet_max_chars" env:"SNIPPET_MAX_CHARS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			MaxTurns:    3,
			Policy:      "fixed_count",
			JudgeWindow: 6,
		},
		Session: SessionConfig{
			Type: "memory",
		},
		Summary: SummaryConfig{
			TranscriptTokenBudget: 3000,
			SnippetMaxChars:       600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Chat.MaxTurns <= 0 {
		return fmt.Errorf("chat.max_turns must be positive")
	}
	switch c.Chat.Policy {
	case "fixed_count", "convergence":
	default:
		return fmt.Errorf("chat.policy must be fixed_count or convergence, got %q", c.Chat.Policy)
	}
	switch c.Session.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.type must be memory or redis, got %q", c.Session.Type)
	}
	if c.Session.Type == "redis" && c.Session.Redis.Addr == "" {
		return fmt.Errorf("session.redis.addr is required for the redis backend")
	}
	return nil
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTCHAT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 结构体递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串列表
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
