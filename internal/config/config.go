package config

import (
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

type Config struct {
	ListenAddr    string
	PublicBaseURL string
	AdminToken    string

	LineChannelToken  string
	LineChannelSecret string
	LineAPIEndpoint   string
	LineDataEndpoint  string

	VisionBackend     string
	VisionMaxTokens   int
	VisionTemperature float32
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	ClaudeAPIKey      string
	ClaudeModel       string
	OllamaHost        string
	OllamaModel       string

	PhotoBackend string
	PhotoPath    string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	DBPath       string

	DialogflowAgentID string
	DialogflowBaseURL string

	HTTPTimeout  time.Duration
	AuditTimeout time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from the environment. Values from the file named by
// ENV_FILE (default ".env") are applied first; variables already present in
// the process environment win.
func Load() *Config {
	_ = gotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),

		LineChannelToken:  getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret: getEnv("LINE_CHANNEL_SECRET", ""),
		LineAPIEndpoint:   getEnv("LINE_API_ENDPOINT", "https://api.line.me"),
		LineDataEndpoint:  getEnv("LINE_DATA_ENDPOINT", "https://api-data.line.me"),

		VisionBackend:     getEnv("VISION_BACKEND", "openai"),
		VisionMaxTokens:   getEnvInt("VISION_MAX_TOKENS", 1000),
		VisionTemperature: getEnvFloat("VISION_TEMPERATURE", 0.2),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		ClaudeAPIKey:      getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:       getEnv("CLAUDE_MODEL", "claude-opus-4-6"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llava"),

		PhotoBackend: getEnv("PHOTO_BACKEND", "local"),
		PhotoPath:    getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		DBPath:       getEnv("DB_PATH", "/data/foodbot.db"),

		DialogflowAgentID: getEnv("DIALOGFLOW_AGENT_ID", ""),
		DialogflowBaseURL: getEnv("DIALOGFLOW_BASE_URL", "https://bots.dialogflow.com/line"),

		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		AuditTimeout: getEnvDuration("AUDIT_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float32) float32 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 32); err == nil {
		return float32(f)
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultVal
}
