package extractclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/service/extractclient/config"
)

// Запрос к собственному сервису распознавания
type extractRequest struct {
	Task string `json:"task"`
	Text string `json:"text"`
}

type httpClient struct {
	serviceAddr string
	resty       *resty.Client
}

func NewHTTPClient(cfg config.Config) (Extractor, error) {
	if cfg.ExtractAddr == "" {
		return nil, fmt.Errorf("extraction service address is required")
	}
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return httpClient{serviceAddr: cfg.ExtractAddr, resty: client}, nil
}

func (client httpClient) ExtractCards(ctx context.Context, text string) ([]model.NewCard, error) {
	body, err := client.send(ctx, "/api/extract/cards", extractRequest{Task: TaskCards, Text: text})
	if err != nil {
		return nil, err
	}
	return parseCards(body)
}

func (client httpClient) ExtractBalance(ctx context.Context, text string) (model.BalanceUpdate, error) {
	body, err := client.send(ctx, "/api/extract/balance", extractRequest{Task: TaskBalance, Text: text})
	if err != nil {
		return nil, err
	}
	return parseBalance(body)
}

func (client httpClient) send(ctx context.Context, path string, request extractRequest) ([]byte, error) {
	setreq := client.resty.R().SetContext(ctx).SetBody(request)
	setreq.Method = http.MethodPost
	setreq.URL = client.serviceAddr + path
	setresp, err := setreq.Send()
	if err != nil {
		return nil, err
	}

	switch setresp.StatusCode() {
	case http.StatusOK:
		return setresp.Body(), nil
	case http.StatusNoContent:
		return nil, ErrNothingFound
	default:
		return nil, fmt.Errorf("extract request status: %d", setresp.StatusCode())
	}
}
