package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации tilectl.

type Config struct {
	Tilemap  TilemapConfig  `yaml:"tilemap"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type TilemapConfig struct {
	ChunkWidth  int `yaml:"chunk_width"`
	ChunkLength int `yaml:"chunk_length"`
}

type SnapshotConfig struct {
	Format      string `yaml:"format"`      // binary | json
	Compression string `yaml:"compression"` // none | zstd | gzip
	MaxHistory  int    `yaml:"max_history"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	FileLevel  string `yaml:"file_level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Tilemap:  TilemapConfig{ChunkWidth: 16, ChunkLength: 16},
		Snapshot: SnapshotConfig{Format: "binary", Compression: "zstd", MaxHistory: 100},
		Logging:  LoggingConfig{Level: "INFO", FileLevel: "DEBUG", MaxSizeMB: 10, MaxBackups: 3},
		Metrics:  MetricsConfig{Namespace: "tileworld"},
	}
}

// GetChunkWidth возвращает ширину чанка с поддержкой fallback значений
func (t *TilemapConfig) GetChunkWidth() int {
	return getIntWithEnvFallback(t.ChunkWidth, "TILEWORLD_CHUNK_WIDTH", 16)
}

// GetChunkLength возвращает длину чанка с поддержкой fallback значений
func (t *TilemapConfig) GetChunkLength() int {
	return getIntWithEnvFallback(t.ChunkLength, "TILEWORLD_CHUNK_LENGTH", 16)
}

// GetMaxHistory возвращает глубину истории с поддержкой fallback значений
func (s *SnapshotConfig) GetMaxHistory() int {
	return getIntWithEnvFallback(s.MaxHistory, "TILEWORLD_MAX_HISTORY", 100)
}

// GetAddr возвращает адрес /metrics; пустая строка — HTTP не поднимать
func (m *MetricsConfig) GetAddr() string {
	return getStringWithEnvFallback(m.Addr, "TILEWORLD_METRICS_ADDR", "")
}

// GetLevel возвращает уровень консольного лога
func (l *LoggingConfig) GetLevel() string {
	return getStringWithEnvFallback(l.Level, "TILEWORLD_LOG_LEVEL", "INFO")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	if configVal > 0 {
		return configVal
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultVal
}

func getStringWithEnvFallback(configVal, envVar, defaultVal string) string {
	if strings.TrimSpace(configVal) != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV TILEWORLD_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TILEWORLD_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
