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
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/request"
)

// Kopokopo is the mobile money (M-Pesa STK push) provider client. It holds a
// short-lived OAuth token refreshed on demand; webhook authenticity is an
// HMAC over the raw body, verified by the reconciliation handler, not here.
type Kopokopo struct {
	baseUrl      string
	clientId     string
	clientSecret string
	apiKey       string
	tillNumber   string
	callbackUrl  string
	client       *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewKopokopo(conf config.KopokopoConfig) *Kopokopo {
	return &Kopokopo{
		baseUrl:      conf.BaseUrl,
		clientId:     conf.ClientId,
		clientSecret: conf.ClientSecret,
		apiKey:       conf.ApiKey,
		tillNumber:   conf.TillNumber,
		callbackUrl:  conf.CallbackUrl,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// ApiKey exposes the webhook HMAC secret.
func (k *Kopokopo) ApiKey() string { return k.apiKey }

type StkPushRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a valid OAuth token, fetching a new one when the cached
// token is within a minute of expiry.
func (k *Kopokopo) accessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.token != "" && time.Until(k.tokenExp) > time.Minute {
		return k.token, nil
	}

	body := bytes.NewBufferString(`{"grant_type":"client_credentials"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseUrl+"/oauth/token", body)
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "oauth/token", Err: err}
	}
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(k.clientId, k.clientSecret))
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "oauth/token", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: ProviderKopokopo, Endpoint: "oauth/token", State: resp.StatusCode, Message: "token request rejected"}
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "oauth/token", Err: err}
	}

	k.token = token.AccessToken
	k.tokenExp = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return k.token, nil
}

// StkPush initiates a payment prompt on the subscriber's phone and returns the
// provider's resource id for the attempt, taken from the Location header of
// the 201 response.
func (k *Kopokopo) StkPush(ctx context.Context, push StkPushRequest) (string, error) {
	if push.PhoneNumber == "" || push.Amount.LessThanOrEqual(decimal.Zero) {
		return "", apierror.NewAPIError(apierror.ErrInvalidInput, "stk push requires a phone number and a positive amount", push)
	}

	token, err := k.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"payment_channel": "M-PESA STK Push",
		"till_number":     k.tillNumber,
		"subscriber": map[string]interface{}{
			"phone_number": push.PhoneNumber,
		},
		"amount": map[string]interface{}{
			"currency": push.Currency,
			"value":    push.Amount.String(),
		},
		"metadata": map[string]interface{}{
			"reference": push.Reference,
		},
		"_links": map[string]interface{}{
			"callback_url": k.callbackUrl,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal stk push payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseUrl+"/api/v1/incoming_payments", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		var errBody struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return "", &ProviderError{Provider: ProviderKopokopo, Endpoint: "incoming_payments", State: resp.StatusCode, Message: errBody.ErrorMessage}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments", Err: errMissingLocation}
	}
	return ResourceIDFromSelfLink(location), nil
}

var errMissingLocation = &missingLocationError{}

type missingLocationError struct{}

func (*missingLocationError) Error() string { return "created response carried no Location header" }

// PaymentStatus queries the provider for the current status of an STK push
// attempt.
func (k *Kopokopo) PaymentStatus(ctx context.Context, providerRef string) (string, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseUrl+"/api/v1/incoming_payments/"+providerRef, nil)
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments/" + providerRef, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.client.Do(req)
	if err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments/" + providerRef, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return "", &ProviderError{Provider: ProviderKopokopo, Endpoint: "incoming_payments/" + providerRef, State: resp.StatusCode, Message: "payment not found"}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: ProviderKopokopo, Endpoint: "incoming_payments/" + providerRef, State: resp.StatusCode, Message: "status request rejected"}
	}

	var status struct {
		Data struct {
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", &TransportError{Provider: ProviderKopokopo, Endpoint: "incoming_payments/" + providerRef, Err: err}
	}
	return status.Data.Attributes.Status, nil
}
