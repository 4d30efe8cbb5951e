package config

import "time"

const (
	ProviderNone   = ""
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"
)

type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	ExtractAddr  string
	Timeout      time.Duration
}
