package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the service. Values come from a YAML file,
// are overridden by environment variables, and fall back to defaults.
type Config struct {
	Server struct {
		Port     string `yaml:"port"`
		UIOrigin string `yaml:"ui_origin"`
	} `yaml:"server"`

	LLM struct {
		BaseURL      string  `yaml:"base_url"`
		ChatModel    string  `yaml:"chat_model"`
		EmbedModel   string  `yaml:"embed_model"`
		MaxTokens    int     `yaml:"max_tokens"`
		Temperature  float64 `yaml:"temperature"`
		EmbedWorkers int     `yaml:"embed_workers"`
	} `yaml:"llm"`

	Chroma struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
	} `yaml:"chroma"`

	Scraper struct {
		MaxDepth       int      `yaml:"max_depth"`
		RateLimit      float64  `yaml:"rate_limit"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
	} `yaml:"scraper"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		MinLength    int `yaml:"min_length"`
	} `yaml:"chunker"`

	Query struct {
		TopK       int `yaml:"top_k"`
		MaxHistory int `yaml:"max_history"`
	} `yaml:"query"`

	Notes struct {
		Dir string `yaml:"dir"`
	} `yaml:"notes"`
}

// Load reads the config file at path, or the first default location that
// exists when path is empty. A missing file is not an error; defaults and
// environment variables still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"docstack.yaml",
			"docstack.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docstack/config.yaml"),
			"/etc/docstack/config.yaml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.UIOrigin == "" {
		config.Server.UIOrigin = "http://localhost:5173"
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "llama3.1"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.EmbedWorkers == 0 {
		config.LLM.EmbedWorkers = 4
	}

	if config.Chroma.URL == "" {
		config.Chroma.URL = "http://localhost:8000"
	}
	if config.Chroma.Collection == "" {
		config.Chroma.Collection = "docstack"
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.TimeoutSeconds == 0 {
		config.Scraper.TimeoutSeconds = 30
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 100
	}
	if config.Chunker.MinLength == 0 {
		config.Chunker.MinLength = 50
	}

	if config.Query.TopK == 0 {
		config.Query.TopK = 5
	}
	if config.Query.MaxHistory == 0 {
		config.Query.MaxHistory = 20
	}
}

func mergeWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if origin := os.Getenv("UI_ORIGIN"); origin != "" {
		config.Server.UIOrigin = origin
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if chromaURL := os.Getenv("CHROMA_URL"); chromaURL != "" {
		config.Chroma.URL = chromaURL
	}
	if notesDir := os.Getenv("NOTES_DIR"); notesDir != "" {
		config.Notes.Dir = notesDir
	}
}
