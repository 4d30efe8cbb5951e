package extractclient

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/service/extractclient/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

var cardsSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"cardNumber": {Type: genai.TypeString},
			"pin":        {Type: genai.TypeString},
			"amount":     {Type: genai.TypeNumber},
		},
		Required: []string{"cardNumber", "pin"},
	},
}

var balanceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"found":      {Type: genai.TypeBoolean},
		"balance":    {Type: genai.TypeNumber},
		"expiryDate": {Type: genai.TypeString, Description: "dd/MMM/yyyy"},
	},
	Required: []string{"found"},
}

type geminiClient struct {
	client *genai.Client
	model  string
	cfg    config.Config
}

func NewGeminiClient(ctx context.Context, cfg config.Config) (Extractor, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.GeminiModel
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	return &geminiClient{client: client, model: modelName, cfg: cfg}, nil
}

func (client *geminiClient) ExtractCards(ctx context.Context, text string) ([]model.NewCard, error) {
	body, err := client.generate(ctx, cardsPrompt+text, cardsSchema)
	if err != nil {
		return nil, err
	}
	return parseCards(body)
}

func (client *geminiClient) ExtractBalance(ctx context.Context, text string) (model.BalanceUpdate, error) {
	body, err := client.generate(ctx, balancePrompt+text, balanceSchema)
	if err != nil {
		return nil, err
	}
	return parseBalance(body)
}

func (client *geminiClient) generate(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error) {
	if client.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.cfg.Timeout)
		defer cancel()
	}

	result, err := client.client.Models.GenerateContent(ctx,
		client.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return nil, ErrNothingFound
	}
	return []byte(text), nil
}
