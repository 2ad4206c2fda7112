package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	ENV           string        `yaml:"env" env:"ENV" env-default:"local"`
	PORT          string        `yaml:"port" env:"PORT" env-default:"8080"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL" env-required:"true"`
	DatabaseURL   string        `yaml:"database_url" env:"DATABASE_URL"`
	AdminSecret   string        `yaml:"admin_secret" env:"ADMIN_SECRET"`
	KnowledgePath string        `yaml:"knowledge_path" env:"KNOWLEDGE_PATH"`
	ShutdownWait  time.Duration `yaml:"shutdown_wait" env:"SHUTDOWN_WAIT" env-default:"10s"`
	OpenAI        OpenAI        `yaml:"openai"`
	Telegram      Telegram      `yaml:"telegram"`
	WhatsApp      WhatsApp      `yaml:"whatsapp"`
	Dialog        Dialog        `yaml:"dialog"`
}

type OpenAI struct {
	APIKey      string  `yaml:"api_key" env:"OPENAI_API_KEY" env-required:"true"`
	Model       string  `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	Temperature float32 `yaml:"temperature" env:"OPENAI_TEMPERATURE" env-default:"0.2"`
}

// Telegram is mounted only when BotToken is set. The bot also carries lead
// notifications to AdminChatID for both channels.
type Telegram struct {
	BotToken    string  `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	SecretToken string  `yaml:"secret_token" env:"TELEGRAM_SECRET_TOKEN"`
	AdminChatID string  `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID"`
	WebhookURL  string  `yaml:"webhook_url" env:"TELEGRAM_WEBHOOK_URL"`
	APIBaseURL  string  `yaml:"api_base_url" env:"TELEGRAM_API_BASE_URL" env-default:"https://api.telegram.org"`
	SendRate    float64 `yaml:"send_rate" env:"TELEGRAM_SEND_RATE" env-default:"25"`
}

// WhatsApp is mounted only when Token and PhoneNumberID are set.
type WhatsApp struct {
	Token         string `yaml:"token" env:"META_WA_TOKEN"`
	PhoneNumberID string `yaml:"phone_number_id" env:"META_WA_PHONE_NUMBER_ID"`
	VerifyToken   string `yaml:"verify_token" env:"META_WA_VERIFY_TOKEN"`
	AppSecret     string `yaml:"app_secret" env:"META_APP_SECRET"`
	APIBaseURL    string `yaml:"api_base_url" env:"META_API_BASE_URL" env-default:"https://graph.facebook.com/v20.0"`
}

// Dialog holds the timings of the conversation state.
type Dialog struct {
	HistoryLen         int           `yaml:"history_len" env:"HISTORY_LEN" env-default:"8"`
	ReplyMaxRunes      int           `yaml:"reply_max_runes" env:"REPLY_MAX_RUNES" env-default:"3500"`
	LastOfferFreshness time.Duration `yaml:"last_offer_freshness" env:"LAST_OFFER_FRESHNESS" env-default:"10m"`
	DuplicateWindow    time.Duration `yaml:"duplicate_window" env:"DUPLICATE_WINDOW" env-default:"2h"`
	OfferTopicCooldown time.Duration `yaml:"offer_topic_cooldown" env:"OFFER_TOPIC_COOLDOWN" env-default:"24h"`
	OfferGap           time.Duration `yaml:"offer_gap" env:"OFFER_GAP" env-default:"10m"`
	FollowupDelay      time.Duration `yaml:"followup_delay" env:"FOLLOWUP_DELAY" env-default:"3h"`
	HistoryTTL         time.Duration `yaml:"history_ttl" env:"HISTORY_TTL" env-default:"720h"`
	BookingTTL         time.Duration `yaml:"booking_ttl" env:"BOOKING_TTL" env-default:"24h"`
	ContactTTL         time.Duration `yaml:"contact_ttl" env:"CONTACT_TTL" env-default:"720h"`
	LanguageTTL        time.Duration `yaml:"language_ttl" env:"LANGUAGE_TTL" env-default:"720h"`
	LastOfferTTL       time.Duration `yaml:"last_offer_ttl" env:"LAST_OFFER_TTL" env-default:"30m"`
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsApp.Token != "" && c.WhatsApp.PhoneNumberID != ""
}

// MustLoad reads .env (if present), then the optional YAML file named by
// -config or CONFIG_PATH, then the environment, which wins.
func MustLoad() *Config {
	_ = godotenv.Load()

	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("failed to read config: " + err.Error())
	}
	return cfg
}

// Load reads config from path (may be empty) and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, err
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fetchConfigPath takes the path from the -config flag, then CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
