// =============================================================================
// 📦 Convergio 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Log:          DefaultLogConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Telemetry:    DefaultTelemetryConfig(),
		Metrics:      DefaultMetricsConfig(),
		LLM:          DefaultLLMConfig(),
		RAG:          DefaultRAGConfig(),
		Conflict:     DefaultConflictConfig(),
		Selection:    DefaultSelectionConfig(),
		Conversation: DefaultConversationConfig(),
		Agents:       DefaultAgents(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    6 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		ExportDir:       "./exports",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "convergio:",
		DefaultTTL:   30 * time.Minute,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "convergio",
		Password:        "",
		Name:            "convergio",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "convergio",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "convergio",
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:         "https://api.openai.com",
		Model:           "gpt-4o-mini",
		Timeout:         60 * time.Second,
		MaxTokens:       800,
		Temperature:     0.7,
		PriceInput:      0.15,
		PriceCompletion: 0.60,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// DefaultRAGConfig 返回默认上下文注入配置
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		InLoopEnabled:       true,
		MaxFacts:            5,
		SimilarityThreshold: 0.3,
		CacheCapacity:       1024,
		CacheTTL:            30 * time.Minute,
		HistoryLimit:        50,
		RetrievalTimeout:    2 * time.Second,
		ScratchpadWindow:    3,
		MaxFactsPerUser:     200,
		FactTTL:             7 * 24 * time.Hour,
	}
}

// DefaultConflictConfig 返回默认冲突检测配置
func DefaultConflictConfig() ConflictConfig {
	return ConflictConfig{
		Window: 6,
	}
}

// DefaultSelectionConfig 返回默认选择指标配置
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		Strategy:        "expertise",
		CostPerTurn:     0.10,
		DefaultBaseline: 10,
		BaselineTurns: map[string]int{
			"simple_query":     3,
			"analysis":         8,
			"strategy":         12,
			"complex_workflow": 20,
		},
		MaxConversations: 10000,
		StoreTimeout:     2 * time.Second,
	}
}

// DefaultConversationConfig 返回默认群聊配置
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MaxTurns:               6,
		Timeout:                5 * time.Minute,
		TerminationWords:       []string{"TERMINATE", "DONE", "EXIT"},
		MaxConsecutiveFailures: 3,
		DefaultType:            "analysis",
		MaxResults:             1000,
	}
}

// DefaultAgents 返回内置的专家 agent
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{
			Name:        "Amy-CFO",
			Description: "chief financial officer",
			Expertise:   []string{"budget", "finance", "roi", "cost", "revenue", "cash flow", "pricing"},
		},
		{
			Name:        "Luca-Security-Expert",
			Description: "cybersecurity and risk specialist",
			Expertise:   []string{"security", "risk", "compliance", "privacy", "threat", "vulnerability"},
		},
		{
			Name:        "Sofia-Marketing-Strategist",
			Description: "marketing strategist",
			Expertise:   []string{"marketing", "brand", "campaign", "audience", "growth", "launch"},
		},
		{
			Name:        "Baccio-Tech-Architect",
			Description: "technical architect",
			Expertise:   []string{"architecture", "scalability", "infrastructure", "api", "integration", "performance"},
		},
		{
			Name:        "Ali-Chief-Of-Staff",
			Description: "chief of staff who coordinates and synthesizes",
			Expertise:   []string{"strategy", "plan", "priorities", "roadmap", "decision", "summary"},
		},
	}
}
