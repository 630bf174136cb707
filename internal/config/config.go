package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig configures the classification endpoint. The credential itself is
// never stored in the config file; only the path to the secret file is.
type LLMConfig struct {
	BaseURL        string `yaml:"baseURL"`
	Model          string `yaml:"model"`
	TokenPath      string `yaml:"tokenPath"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// PipelineConfig controls per-run behavior of the ETL trigger.
type PipelineConfig struct {
	// TruncateBeforeUpload clears the sink table before writing a batch, so
	// re-running a range does not conflict on item_id.
	TruncateBeforeUpload bool `yaml:"truncateBeforeUpload"`
	// RunLockTTLSeconds bounds how long the per-source redis run lock is
	// held if a run dies without releasing it.
	RunLockTTLSeconds int `yaml:"runLockTTLSeconds"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	applyEnv(&cfg)

	return &cfg
}

// applyEnv fills credentials the config file intentionally leaves out.
// DATABASE_URL wins; otherwise a DSN is assembled from the SQL_* variables
// the deployment environment provides.
func applyEnv(cfg *Config) {
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = dsnFromEnv()
	}
	if v := os.Getenv("OPENAI_TOKEN_PATH"); v != "" {
		cfg.LLM.TokenPath = v
	}
}

func dsnFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	server := os.Getenv("SQL_SERVER")
	user := os.Getenv("SQL_USER")
	password := os.Getenv("SQL_PASSWORD")
	database := os.Getenv("SQL_DATABASE")
	if server == "" || database == "" {
		return ""
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s", user, password, server, database)
}
