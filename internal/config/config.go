package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Transport string

const (
	TransportWebSocket Transport = "ws"
	TransportPolling   Transport = "poll"
)

type Config struct {
	MarketBaseURL     string `env:"MARKET_BASE_URL" envDefault:"http://localhost:8077"`
	MarketWSURL       string `env:"MARKET_WS_URL"`
	MarketAccessToken string `env:"MARKET_ACCESS_TOKEN"`
	MarketUserID      int64  `env:"MARKET_USER_ID"`

	// Live channel settings
	ChatTransport         Transport     `env:"CHAT_TRANSPORT" envDefault:"ws"`
	PollInterval          time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	RetryMaxAttempts      int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay        time.Duration `env:"RETRY_BASE_DELAY" envDefault:"2s"`
	RetryMaxDelay         time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	InitialConversationID int64         `env:"INITIAL_CONVERSATION_ID"`

	// Assistant settings
	AssistantLane        string `env:"ASSISTANT_LANE" envDefault:"inbox"`
	AssistantSessionFile string `env:"ASSISTANT_SESSION_FILE" envDefault:"data/assistant_session.json"`

	// Directory refresh
	WatchCronSpec string `env:"WATCH_CRON_SPEC" envDefault:"@every 30s"`

	// Storage
	TranscriptLogPath string `env:"TRANSCRIPT_LOG_PATH" envDefault:"logs/chat.jsonl"`

	// Seller bridge (Telegram)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	// Dev backend
	MinimarketAddr          string `env:"MINIMARKET_ADDR" envDefault:":8077"`
	MinimarketSigningSecret string `env:"MINIMARKET_SIGNING_SECRET" envDefault:"dev-secret"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	InboxPromptPath   string `env:"INBOX_PROMPT_PATH" envDefault:"prompts/inbox_prompt.txt"`
	SupportPromptPath string `env:"SUPPORT_PROMPT_PATH" envDefault:"prompts/support_prompt.txt"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
