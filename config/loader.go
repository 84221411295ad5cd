// =============================================================================
// 📦 Convergio 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CONVERGIO").
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

// Config 是 Convergio 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// RAG 每轮上下文注入配置
	RAG RAGConfig `yaml:"rag" env:"RAG"`

	// Conflict 冲突检测配置
	Conflict ConflictConfig `yaml:"conflict" env:"CONFLICT"`

	// Selection 选择指标配置
	Selection SelectionConfig `yaml:"selection" env:"SELECTION"`

	// Conversation 群聊配置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Agents 参与群聊的 agent 定义，只能通过 YAML 配置
	Agents []AgentConfig `yaml:"agents" env:"-"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需要覆盖一次完整群聊
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// KPI 导出目录
	ExportDir string `yaml:"export_dir" env:"EXPORT_DIR"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用（上下文二级缓存与事实存储）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 是否启用（选择决策持久化）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: postgres
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否暴露 /metrics
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LLMConfig OpenAI 兼容补全接口配置
type LLMConfig struct {
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 默认最大输出 token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 输入价格（$/1M tokens）
	PriceInput float64 `yaml:"price_input" env:"PRICE_INPUT"`
	// 输出价格（$/1M tokens）
	PriceCompletion float64 `yaml:"price_completion" env:"PRICE_COMPLETION"`
	// 限流、5xx 与网络错误的最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 第一次重试前的退避时间，之后指数增长
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
}

// RAGConfig 每轮上下文注入配置
type RAGConfig struct {
	// 是否在每轮发言前注入上下文
	InLoopEnabled bool `yaml:"in_loop_enabled" env:"IN_LOOP_ENABLED"`
	// 每轮最多注入的事实数
	MaxFacts int `yaml:"max_facts" env:"MAX_FACTS"`
	// 事实相似度阈值
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	// 本地缓存容量
	CacheCapacity int `yaml:"cache_capacity" env:"CACHE_CAPACITY"`
	// 缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// 每个会话保留的注入记录数
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`
	// 单次检索超时
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout" env:"RETRIEVAL_TIMEOUT"`
	// 渲染进消息的 scratchpad 条数
	ScratchpadWindow int `yaml:"scratchpad_window" env:"SCRATCHPAD_WINDOW"`
	// 每个用户保留的事实数
	MaxFactsPerUser int `yaml:"max_facts_per_user" env:"MAX_FACTS_PER_USER"`
	// 事实过期时间
	FactTTL time.Duration `yaml:"fact_ttl" env:"FACT_TTL"`
}

// TermPairConfig 一对反义词
type TermPairConfig struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// ConflictConfig 冲突检测配置
type ConflictConfig struct {
	// 扫描最近多少轮
	Window int `yaml:"window" env:"WINDOW"`
	// 反义词表，为空时使用内置词表
	TermPairs []TermPairConfig `yaml:"term_pairs" env:"-"`
}

// SelectionConfig 选择指标配置
type SelectionConfig struct {
	// 发言人选择策略: expertise, round_robin
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// 每轮估算成本
	CostPerTurn float64 `yaml:"cost_per_turn" env:"COST_PER_TURN"`
	// 未知会话类型的基线轮数
	DefaultBaseline int `yaml:"default_baseline" env:"DEFAULT_BASELINE"`
	// 各会话类型基线轮数
	BaselineTurns map[string]int `yaml:"baseline_turns" env:"-"`
	// 内存中保留的会话数
	MaxConversations int `yaml:"max_conversations" env:"MAX_CONVERSATIONS"`
	// 持久化写入超时
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`
}

// ConversationConfig 群聊配置
type ConversationConfig struct {
	// 最大 agent 轮数
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// 单次群聊超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 终止词
	TerminationWords []string `yaml:"termination_words" env:"TERMINATION_WORDS"`
	// 连续失败多少次结束群聊
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" env:"MAX_CONSECUTIVE_FAILURES"`
	// 默认会话类型
	DefaultType string `yaml:"default_type" env:"DEFAULT_TYPE"`
	// 保留的群聊结果数
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
}

// AgentConfig agent 定义
type AgentConfig struct {
	// 名称
	Name string `yaml:"name"`
	// 描述
	Description string `yaml:"description"`
	// 专长关键词
	Expertise []string `yaml:"expertise"`
	// 系统提示词
	SystemPrompt string `yaml:"system_prompt"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens"`
	// 温度参数
	Temperature float64 `yaml:"temperature"`
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
		envPrefix:  "CONVERGIO",
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
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
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

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
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
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm max_retries must not be negative")
	}
	if c.RAG.MaxFacts < 0 {
		errs = append(errs, "rag max_facts must not be negative")
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		errs = append(errs, "rag similarity_threshold must be between 0 and 1")
	}
	if c.Conflict.Window <= 0 {
		errs = append(errs, "conflict window must be positive")
	}
	for i, p := range c.Conflict.TermPairs {
		if strings.TrimSpace(p.A) == "" || strings.TrimSpace(p.B) == "" {
			errs = append(errs, fmt.Sprintf("conflict term_pairs[%d] has an empty term", i))
		}
	}
	switch c.Selection.Strategy {
	case "expertise", "round_robin":
	default:
		errs = append(errs, fmt.Sprintf("unknown selection strategy %q", c.Selection.Strategy))
	}
	if c.Selection.CostPerTurn < 0 {
		errs = append(errs, "selection cost_per_turn must not be negative")
	}
	if c.Conversation.MaxTurns <= 0 {
		errs = append(errs, "conversation max_turns must be positive")
	}

	seen := make(map[string]struct{}, len(c.Agents))
	for i, a := range c.Agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("agents[%d] has no name", i))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate agent %q", name))
		}
		seen[name] = struct{}{}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	default:
		return ""
	}
}
