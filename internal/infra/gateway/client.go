// Package gateway talks to the payment processor's order API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"settlement/internal/domain/model"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// 呼び出し側には詳細を返さない（ログのみ）
	ErrUnavailable = errors.New("payment gateway unavailable")
	// 最小単位（paise等）に整数で変換できない
	ErrInvalidAmount = errors.New("amount is not representable in minor units")
)

type Options struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type Client struct {
	http    *resty.Client
	baseURL string
	log     zerolog.Logger
}

func NewClient(opts Options, log zerolog.Logger) *Client {
	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetBasicAuth(opts.KeyID, opts.KeySecret).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateIntentは決済代行に注文を作る。リトライはしない
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (model.PaymentIntent, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return model.PaymentIntent{}, err
	}

	reqBody := createOrderRequest{
		Amount:   minor,
		Currency: currency,
		Receipt:  NewReceipt(),
	}

	var out createOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&out).
		Post(c.baseURL + "/v1/orders")
	if err != nil {
		c.log.Error().Err(err).Str("receipt", reqBody.Receipt).Msg("gateway request failed")
		return model.PaymentIntent{}, fmt.Errorf("create order: %w", ErrUnavailable)
	}
	if resp.IsError() {
		c.log.Error().
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Str("receipt", reqBody.Receipt).
			Msg("gateway rejected order")
		return model.PaymentIntent{}, fmt.Errorf("create order: status %d: %w", resp.StatusCode(), ErrUnavailable)
	}
	if out.ID == "" {
		c.log.Error().Str("body", resp.String()).Msg("gateway response missing order id")
		return model.PaymentIntent{}, fmt.Errorf("create order: malformed response: %w", ErrUnavailable)
	}

	cur := out.Currency
	if cur == "" {
		cur = currency
	}
	amt := amount
	if out.Amount > 0 {
		amt = decimal.NewFromInt(out.Amount).Shift(-2)
	}

	return model.PaymentIntent{
		ExternalOrderRef: out.ID,
		Amount:           amt,
		Currency:         cur,
		Receipt:          reqBody.Receipt,
	}, nil
}

// 500.50 -> 50050
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// rcpt_ + uuid v4（ハイフン無し）
func NewReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
