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

// Package gateway holds the outbound clients for the payment providers. A
// gateway signs and sends a request, parses the response, and reports failure
// as either a ProviderError (the provider rejected the payload; retrying the
// same payload will not help) or a TransportError (the provider was never
// reached or answered garbage; the caller may retry). Gateways never retry on
// their own.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/havenpay/haven/model"
)

const (
	ProviderCryptomus = "cryptomus"
	ProviderKopokopo  = "kopokopo"
)

// ProviderError reports a non-success discriminator in a parsed provider
// response.
type ProviderError struct {
	Provider string
	Endpoint string
	State    int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s rejected %s (state %d): %s", e.Provider, e.Endpoint, e.State, e.Message)
}

// TransportError reports a network or HTTP level failure before a usable
// provider response was obtained.
type TransportError struct {
	Provider string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s unreachable on %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProvider reports whether err is (or wraps) a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// CryptoProvider is the outbound surface of the crypto payment/payout flows.
type CryptoProvider interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	PaymentStatus(ctx context.Context, orderID string) (string, error)
	PayoutStatus(ctx context.Context, orderID string) (string, error)
}

// MobileMoneyProvider is the outbound surface of the M-Pesa STK push flow.
type MobileMoneyProvider interface {
	StkPush(ctx context.Context, req StkPushRequest) (string, error)
	PaymentStatus(ctx context.Context, providerRef string) (string, error)
}

// MapCryptomusStatus folds a provider-reported payment status into the ledger
// state machine. Anything outside the terminal set means the payment is still
// in flight.
func MapCryptomusStatus(status string) string {
	switch strings.ToLower(status) {
	case "paid", "paid_over":
		return model.StatusPaid
	case "fail", "cancel", "system_fail":
		return model.StatusFailed
	default:
		return model.StatusPending
	}
}

// MapKopokopoStatus folds a provider-reported STK push status into the ledger
// state machine.
func MapKopokopoStatus(status string) string {
	switch strings.ToLower(status) {
	case "success", "received":
		return model.StatusPaid
	case "failed":
		return model.StatusFailed
	default:
		return model.StatusPending
	}
}

// ResourceIDFromSelfLink extracts the provider resource id from the tail
// segment of a _links.self URL.
func ResourceIDFromSelfLink(link string) string {
	link = strings.TrimRight(link, "/")
	idx := strings.LastIndex(link, "/")
	if idx < 0 {
		return link
	}
	return link[idx+1:]
}
