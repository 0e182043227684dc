/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/signature"
)

// Cryptomus is the crypto provider client. Payments and payouts are separate
// flows with separate signing keys: payments sign over sorted-key JSON,
// payouts over the payload in insertion order.
type Cryptomus struct {
	baseUrl     string
	merchant    string
	paymentKey  string
	payoutKey   string
	callbackUrl string
	client      *http.Client
}

func NewCryptomus(conf config.CryptomusConfig) *Cryptomus {
	return &Cryptomus{
		baseUrl:     conf.BaseUrl,
		merchant:    conf.Merchant,
		paymentKey:  conf.PaymentKey,
		payoutKey:   conf.PayoutKey,
		callbackUrl: conf.CallbackUrl,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// PaymentKey exposes the webhook verification secret for the payment flow.
func (c *Cryptomus) PaymentKey() string { return c.paymentKey }

// PayoutKey exposes the webhook verification secret for the payout flow.
func (c *Cryptomus) PayoutKey() string { return c.payoutKey }

type PaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"order_id"`
}

type PaymentResult struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	URL     string `json:"url"`
}

type PayoutRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Network  string          `json:"network"`
	Address  string          `json:"address"`
	OrderID  string          `json:"order_id"`
}

type PayoutResult struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// envelope is the provider's response wrapper. A non-zero state is a
// provider-level rejection even when the HTTP status is 200.
type envelope struct {
	State   int             `json:"state"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

// CreatePayment asks the provider for a hosted payment for the given order.
func (c *Cryptomus) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	payload := map[string]interface{}{
		"amount":       req.Amount.String(),
		"currency":     req.Currency,
		"order_id":     req.OrderID,
		"url_callback": c.callbackUrl,
	}
	result := &PaymentResult{}
	if err := c.send(ctx, "payment", c.paymentKey, signature.SortedJSON, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreatePayout asks the provider to pay out crypto to an address. Required
// fields are checked locally first; an incomplete payout request must never
// reach the provider.
func (c *Cryptomus) CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "payout amount is required and must be positive", req)
	}
	if req.Currency == "" || req.Network == "" || req.Address == "" || req.OrderID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "payout requires currency, network, address and order_id", req)
	}

	payload := map[string]interface{}{
		"amount":       req.Amount.String(),
		"currency":     req.Currency,
		"network":      req.Network,
		"address":      req.Address,
		"order_id":     req.OrderID,
		"url_callback": c.callbackUrl,
	}
	result := &PayoutResult{}
	if err := c.send(ctx, "payout", c.payoutKey, signature.RawJSON, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PaymentStatus returns the provider's current status for a payment order.
func (c *Cryptomus) PaymentStatus(ctx context.Context, orderID string) (string, error) {
	result := &PaymentResult{}
	err := c.send(ctx, "payment/info", c.paymentKey, signature.SortedJSON, map[string]interface{}{"order_id": orderID}, result)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// PayoutStatus returns the provider's current status for a payout order.
func (c *Cryptomus) PayoutStatus(ctx context.Context, orderID string) (string, error) {
	result := &PayoutResult{}
	err := c.send(ctx, "payout/info", c.payoutKey, signature.RawJSON, map[string]interface{}{"order_id": orderID}, result)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// send signs the payload, posts it and unwraps the response envelope.
func (c *Cryptomus) send(ctx context.Context, endpoint, secret string, mode signature.Mode, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal provider payload", err)
	}
	sign, err := signature.Sign(body, secret, mode)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sign provider payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/v1/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Provider: ProviderCryptomus, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("merchant", c.merchant)
	req.Header.Set("sign", sign)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Provider: ProviderCryptomus, Endpoint: endpoint, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransportError{Provider: ProviderCryptomus, Endpoint: endpoint, Err: err}
	}
	if env.State != 0 {
		return &ProviderError{Provider: ProviderCryptomus, Endpoint: endpoint, State: env.State, Message: env.Message}
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return &TransportError{Provider: ProviderCryptomus, Endpoint: endpoint, Err: err}
		}
	}
	return nil
}
