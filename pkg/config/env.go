package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays recognised environment variables onto Defaults and
// returns the result. It does not validate; call Validator.ValidateAll on
// the result.
func LoadFromEnv() *Config {
	cfg := Defaults()

	cfg.Chat.BotToken = getEnv("CHAT_BOT_TOKEN", cfg.Chat.BotToken)
	cfg.Chat.AppToken = getEnv("CHAT_APP_TOKEN", cfg.Chat.AppToken)
	cfg.Chat.BotUserID = getEnv("BOT_USER_ID", cfg.Chat.BotUserID)
	cfg.Chat.APIBase = getEnv("CHAT_API_BASE", cfg.Chat.APIBase)

	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Endpoint = getEnv("LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)

	cfg.Storage.DBPath = getEnv("DB_PATH", cfg.Storage.DBPath)

	cfg.Privacy.Level = PrivacyLevel(getEnv("PRIVACY_LEVEL", string(cfg.Privacy.Level)))
	cfg.Privacy.UseEnterpriseZDR = getEnvBool("USE_ENTERPRISE_ZDR", cfg.Privacy.UseEnterpriseZDR)
	cfg.Privacy.EmbeddingEndpoint = getEnv("EMBEDDING_ENDPOINT", cfg.Privacy.EmbeddingEndpoint)

	cfg.AI.Enabled = getEnvBool("AI_ENABLED", cfg.AI.Enabled)
	cfg.AI.ResponseMaxTokens = getEnvInt("AI_RESPONSE_MAX_TOKENS", cfg.AI.ResponseMaxTokens)
	cfg.AI.Temperature = getEnvFloat("AI_TEMPERATURE", cfg.AI.Temperature)
	cfg.AI.ConversationStyle = ConversationStyle(getEnv("CONVERSATION_STYLE", string(cfg.AI.ConversationStyle)))
	cfg.AI.MaxContextMessages = getEnvInt("MAX_CONTEXT_MESSAGES", cfg.AI.MaxContextMessages)
	cfg.AI.ContextWindowHours = getEnvInt("CONTEXT_WINDOW_HOURS", cfg.AI.ContextWindowHours)
	cfg.AI.EnableConversationSummary = getEnvBool("ENABLE_CONVERSATION_SUMMARY", cfg.AI.EnableConversationSummary)

	cfg.Actions.Enabled = getEnvBool("ENABLE_ACTIONS", cfg.Actions.Enabled)
	cfg.Actions.ConfirmationRequired = getEnvBool("ACTION_CONFIRMATION_REQUIRED", cfg.Actions.ConfirmationRequired)

	cfg.Response.AutoRespondToMentions = getEnvBool("AUTO_RESPOND_TO_MENTIONS", cfg.Response.AutoRespondToMentions)
	cfg.Response.ResponseDelay = getEnvMillis("RESPONSE_DELAY_MS", cfg.Response.ResponseDelay)
	cfg.Response.MentionKeywords = getEnvList("MENTION_KEYWORDS", cfg.Response.MentionKeywords)

	cfg.ChannelWhitelist = getEnvList("CHANNEL_WHITELIST", cfg.ChannelWhitelist)

	cfg.Transport.PingInterval = getEnvSeconds("SOCKET_PING_INTERVAL_S", cfg.Transport.PingInterval)
	cfg.Transport.ReconnectAttempts = getEnvInt("SOCKET_RECONNECT_ATTEMPTS", cfg.Transport.ReconnectAttempts)
	cfg.Transport.ReconnectDelay = getEnvSeconds("SOCKET_RECONNECT_DELAY_S", cfg.Transport.ReconnectDelay)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}

func getEnvMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
