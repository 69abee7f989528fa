package model

// ================ Config ================
type BackendConfig struct {
	// Kind selects the remote implementation: "gemini" or "http".
	Kind   string `envconfig:"BACKEND_KIND" default:"gemini" validate:"oneof=gemini http"`
	HTTP   HTTPBackendConfig
	Gemini GeminiModelConfig
}

type HTTPBackendConfig struct {
	URL       string `envconfig:"ASSISTANT_FUNCTION_URL" validate:"omitempty,url"`
	AuthToken string `envconfig:"ASSISTANT_FUNCTION_TOKEN"`
	TimeoutS  int    `envconfig:"ASSISTANT_FUNCTION_TIMEOUT" default:"120" validate:"gte=0"`
}

type GeminiModelConfig struct {
	APIKey      string  `envconfig:"GEMINI_API_KEY"`
	BaseURL     string  `envconfig:"GEMINI_BASE_URL"`
	Model       string  `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GEMINI_MAX_TOKENS" default:"4000" validate:"gt=0"`
	Temperature float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.8" validate:"gte=0,lte=2"`
}

type WorkflowConfig struct {
	StepDelay string `envconfig:"WORKFLOW_STEP_DELAY" default:"400ms"`
}

type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"24h"`
}
