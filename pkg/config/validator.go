package config

import "fmt"

// Validator validates a Config comprehensively with clear, structured errors.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs fail-fast validation across every config section, in
// dependency order: chat auth, LLM, storage, privacy, AI behaviour,
// response pacing, transport timing. The actions section has no checks.
func (v *Validator) ValidateAll() error {
	if err := v.validateChat(); err != nil {
		return fmt.Errorf("chat validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := v.validatePrivacy(); err != nil {
		return fmt.Errorf("privacy validation failed: %w", err)
	}
	if err := v.validateAI(); err != nil {
		return fmt.Errorf("ai validation failed: %w", err)
	}
	if err := v.validateResponse(); err != nil {
		return fmt.Errorf("response validation failed: %w", err)
	}
	if err := v.validateTransport(); err != nil {
		return fmt.Errorf("transport validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateChat() error {
	c := v.cfg.Chat
	if c.BotToken == "" {
		return NewValidationError("chat", "bot_token", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if c.AppToken == "" {
		return NewValidationError("chat", "app_token", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if c.BotUserID == "" {
		return NewValidationError("chat", "bot_user_id", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateLLM() error {
	l := v.cfg.LLM
	if v.cfg.AI.Enabled && l.APIKey == "" {
		return NewValidationError("llm", "api_key", fmt.Errorf("required when ai_enabled is true: %w", ErrMissingRequiredField))
	}
	if l.Model == "" {
		return NewValidationError("llm", "model", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateStorage() error {
	if v.cfg.Storage.DBPath == "" {
		return NewValidationError("storage", "db_path", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validatePrivacy() error {
	p := v.cfg.Privacy
	if !p.Level.IsValid() {
		return NewValidationError("privacy", "privacy_level",
			fmt.Errorf("must be one of high, medium, low, got %q: %w", p.Level, ErrInvalidValue))
	}
	if p.Level != PrivacyHigh && p.EmbeddingEndpoint == "" {
		return NewValidationError("privacy", "embedding_endpoint",
			fmt.Errorf("required when privacy_level is %q: %w", p.Level, ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateAI() error {
	a := v.cfg.AI
	if !a.Enabled {
		return nil
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return NewValidationError("ai", "ai_temperature",
			fmt.Errorf("must be within [0, 2], got %v: %w", a.Temperature, ErrInvalidValue))
	}
	if a.ResponseMaxTokens < 1 {
		return NewValidationError("ai", "ai_response_max_tokens",
			fmt.Errorf("must be at least 1, got %d: %w", a.ResponseMaxTokens, ErrInvalidValue))
	}
	if !a.ConversationStyle.IsValid() {
		return NewValidationError("ai", "conversation_style",
			fmt.Errorf("must be one of helpful, casual, professional, got %q: %w", a.ConversationStyle, ErrInvalidValue))
	}
	if a.MaxContextMessages < 1 {
		return NewValidationError("ai", "max_context_messages",
			fmt.Errorf("must be at least 1, got %d: %w", a.MaxContextMessages, ErrInvalidValue))
	}
	if a.ContextWindowHours < 1 {
		return NewValidationError("ai", "context_window_hours",
			fmt.Errorf("must be at least 1, got %d: %w", a.ContextWindowHours, ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateResponse() error {
	if v.cfg.Response.ResponseDelay < 0 {
		return NewValidationError("response", "response_delay_ms",
			fmt.Errorf("must be non-negative, got %v: %w", v.cfg.Response.ResponseDelay, ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateTransport() error {
	t := v.cfg.Transport
	if t.PingInterval <= 0 {
		return NewValidationError("transport", "socket_ping_interval_s",
			fmt.Errorf("must be positive, got %v: %w", t.PingInterval, ErrInvalidValue))
	}
	if t.ReconnectAttempts < 1 {
		return NewValidationError("transport", "socket_reconnect_attempts",
			fmt.Errorf("must be at least 1, got %d: %w", t.ReconnectAttempts, ErrInvalidValue))
	}
	if t.ReconnectDelay <= 0 {
		return NewValidationError("transport", "socket_reconnect_delay_s",
			fmt.Errorf("must be positive, got %v: %w", t.ReconnectDelay, ErrInvalidValue))
	}
	return nil
}
