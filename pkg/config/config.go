// Package config defines the typed configuration surface recognised by the
// core: chat auth, LLM behaviour, storage, privacy tier, AI behaviour,
// action dispatch, response pacing, channel filtering, and transport
// timing. It defines the shape, loads it from environment variables
// (LoadFromEnv), and validates it (Validator).
package config

import "time"

// PrivacyLevel selects the default privacy tier applied to ingested text.
type PrivacyLevel string

// Recognised privacy levels.
const (
	PrivacyHigh   PrivacyLevel = "high"
	PrivacyMedium PrivacyLevel = "medium"
	PrivacyLow    PrivacyLevel = "low"
)

// IsValid reports whether p is one of the recognised privacy levels.
func (p PrivacyLevel) IsValid() bool {
	switch p {
	case PrivacyHigh, PrivacyMedium, PrivacyLow:
		return true
	default:
		return false
	}
}

// ConversationStyle selects the tone the response generator pins in its
// system message.
type ConversationStyle string

// Recognised conversation styles.
const (
	StyleHelpful     ConversationStyle = "helpful"
	StyleCasual      ConversationStyle = "casual"
	StyleProfessional ConversationStyle = "professional"
)

// IsValid reports whether s is one of the recognised conversation styles.
func (s ConversationStyle) IsValid() bool {
	switch s {
	case StyleHelpful, StyleCasual, StyleProfessional:
		return true
	default:
		return false
	}
}

// ChatConfig holds the chat service credentials required to open a Socket
// Mode connection and send messages.
type ChatConfig struct {
	BotToken  string // chat_bot_token
	AppToken  string // chat_app_token
	BotUserID string // bot_user_id
	APIBase   string // base URL of the chat service REST/Socket-Mode API
}

// LLMConfig holds the LLM gateway endpoint and default request shape.
type LLMConfig struct {
	APIKey   string
	Endpoint string
	Model    string // llm_model, default "anthropic/claude-3.5-sonnet"
}

// StorageConfig holds the on-disk location of the vector store.
type StorageConfig struct {
	DBPath string // db_path, default "./data/bot.db"
}

// PrivacyConfig holds the default privacy tier and enterprise flag.
type PrivacyConfig struct {
	Level        PrivacyLevel
	UseEnterpriseZDR bool
	EmbeddingEndpoint string // external embedding API endpoint, required unless Level == high
}

// AIConfig holds response-generation behaviour.
type AIConfig struct {
	Enabled                  bool
	ResponseMaxTokens        int
	Temperature              float64
	ConversationStyle        ConversationStyle
	MaxContextMessages       int
	ContextWindowHours       int
	EnableConversationSummary bool
}

// ActionsConfig holds action-dispatch behaviour.
type ActionsConfig struct {
	Enabled                bool
	ConfirmationRequired   bool
}

// ResponseConfig holds reply pacing.
type ResponseConfig struct {
	AutoRespondToMentions bool
	ResponseDelay         time.Duration
	MentionKeywords       []string
}

// TransportConfig holds Socket Mode timing.
type TransportConfig struct {
	PingInterval      time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Config is the umbrella configuration object threaded through the core.
type Config struct {
	Chat             ChatConfig
	LLM              LLMConfig
	Storage          StorageConfig
	Privacy          PrivacyConfig
	AI               AIConfig
	Actions          ActionsConfig
	Response         ResponseConfig
	Transport        TransportConfig
	ChannelWhitelist []string // empty means all channels
}

// Defaults returns a Config populated with the documented defaults. Callers
// overlay recognised environment/config-file values on top before calling
// Validator.ValidateAll.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Model: "anthropic/claude-3.5-sonnet",
		},
		Storage: StorageConfig{
			DBPath: "./data/bot.db",
		},
		Privacy: PrivacyConfig{
			Level: PrivacyHigh,
		},
		AI: AIConfig{
			Enabled:                   true,
			ResponseMaxTokens:         800,
			Temperature:               0.7,
			ConversationStyle:         StyleHelpful,
			MaxContextMessages:        8,
			ContextWindowHours:        24,
			EnableConversationSummary: true,
		},
		Actions: ActionsConfig{
			Enabled:              true,
			ConfirmationRequired: true,
		},
		Response: ResponseConfig{
			AutoRespondToMentions: true,
			ResponseDelay:         time.Second,
		},
		Transport: TransportConfig{
			PingInterval:      30 * time.Second,
			ReconnectAttempts: 5,
			ReconnectDelay:    5 * time.Second,
		},
	}
}
