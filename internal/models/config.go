package models

import (
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr   string       `yaml:"server_addr"`
	DatabaseURL  string       `yaml:"database_url"`
	KafkaBroker  string       `yaml:"kafka_broker"`
	KafkaTopic   string       `yaml:"kafka_topic"`
	KafkaGroupID string       `yaml:"kafka_group_id"`
	StoragePath  string       `yaml:"storage_path"`
	OpenAI       OpenAIConfig `yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"` // falls back to OPENAI_API_KEY
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	BulkModel      string `yaml:"bulk_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.KafkaGroupID == "" {
		cfg.KafkaGroupID = "image-processor-group"
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &cfg, nil
}
