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

package api

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/havenpay/haven"
	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/database/mocks"
	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/signature"
	"github.com/havenpay/haven/model"
)

const (
	testPaymentKey  = "payment-key"
	testPayoutKey   = "payout-key"
	testKopokopoKey = "hmac-key"
)

func setupRouter() (*gin.Engine, *mocks.MockDataSource) {
	gin.SetMode(gin.TestMode)
	config.MockConfig(&config.Configuration{
		ProjectName: "Haven Test",
		Cryptomus: config.CryptomusConfig{
			Merchant:   "merchant-1",
			PaymentKey: testPaymentKey,
			PayoutKey:  testPayoutKey,
		},
		Kopokopo: config.KopokopoConfig{
			ClientId:     "client-1",
			ClientSecret: "secret-1",
			ApiKey:       testKopokopoKey,
		},
		Poller: config.PollerConfig{IntervalSec: 1, TimeoutSec: 2},
	})
	datasource := new(mocks.MockDataSource)
	service := haven.NewHavenWithProviders(datasource, nil, nil)
	router := NewAPI(service).Router()
	return router, datasource
}

func testRecord(kind, method string) *model.Record {
	id := "dep_test-1"
	if kind == model.KindWithdrawal {
		id = "wdl_test-1"
	}
	return &model.Record{
		RecordID:  id,
		OwnerID:   "owner-1",
		Kind:      kind,
		Method:    method,
		Amount:    decimal.NewFromInt(150),
		Currency:  "USD",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
}

// signedCryptomusBody builds a callback body whose sign field verifies over
// the remaining bytes, the way the provider delivers it.
func signedCryptomusBody(t *testing.T, orderID, status, secret string, mode signature.Mode) []byte {
	t.Helper()
	payload := fmt.Sprintf(`{"uuid":"prov-uuid-1","order_id":%q,"status":%q}`, orderID, status)
	sign, err := signature.Sign([]byte(payload), secret, mode)
	require.NoError(t, err)
	signed := fmt.Sprintf(`{"uuid":"prov-uuid-1","order_id":%q,"status":%q,"sign":%q}`, orderID, status, sign)
	return []byte(signed)
}

func postWebhook(router *gin.Engine, route string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", route, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCryptomusPaymentWebhook_PaidDeposit(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindDeposit, model.MethodCrypto)

	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(record, nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.MatchedBy(func(e *model.ProviderEvent) bool {
		return e.Provider == gateway.ProviderCryptomus && e.ResourceID == record.RecordID
	})).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)

	body := signedCryptomusBody(t, record.RecordID, "paid", testPaymentKey, signature.SortedJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), `"success":true`)
	datasource.AssertExpectations(t)
}

func TestCryptomusPaymentWebhook_BadSignature(t *testing.T) {
	router, datasource := setupRouter()

	body := signedCryptomusBody(t, "dep_test-1", "paid", "wrong-key", signature.SortedJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 401, resp.Code)
	assert.Contains(t, resp.Body.String(), `"success":false`)
	datasource.AssertNotCalled(t, "GetRecord", mock.Anything, mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "CreateProviderEvent", mock.Anything, mock.Anything)
}

func TestCryptomusPaymentWebhook_MissingSignature(t *testing.T) {
	router, datasource := setupRouter()

	body := []byte(`{"uuid":"prov-uuid-1","order_id":"dep_test-1","status":"paid"}`)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 401, resp.Code)
	datasource.AssertNotCalled(t, "GetRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestCryptomusPaymentWebhook_ReplayIsAcknowledged(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindDeposit, model.MethodCrypto)
	record.Status = model.StatusPaid

	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(record, nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(false, nil)

	body := signedCryptomusBody(t, record.RecordID, "paid", testPaymentKey, signature.SortedJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), "already processed")
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCryptomusPaymentWebhook_UnknownOrder(t *testing.T) {
	router, datasource := setupRouter()

	datasource.On("GetRecord", mock.Anything, model.KindDeposit, "dep_unknown").Return(nil,
		apierror.NewAPIError(apierror.ErrNotFound, "Record with ID 'dep_unknown' not found", nil))

	body := signedCryptomusBody(t, "dep_unknown", "paid", testPaymentKey, signature.SortedJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 404, resp.Code)
	datasource.AssertNotCalled(t, "CreateProviderEvent", mock.Anything, mock.Anything)
}

func TestCryptomusPaymentWebhook_NonTerminalStatus(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindDeposit, model.MethodCrypto)

	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(record, nil)

	body := signedCryptomusBody(t, record.RecordID, "check", testPaymentKey, signature.SortedJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payment", body, nil)

	assert.Equal(t, 200, resp.Code)
	datasource.AssertNotCalled(t, "CreateProviderEvent", mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "ResolveRecordStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCryptomusPayoutWebhook_FailedWithdrawalRefunds(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindWithdrawal, model.MethodCrypto)

	datasource.On("GetRecord", mock.Anything, model.KindWithdrawal, record.RecordID).Return(record, nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindWithdrawal, record.RecordID, model.StatusFailed).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)

	body := signedCryptomusBody(t, record.RecordID, "fail", testPayoutKey, signature.RawJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payout", body, nil)

	assert.Equal(t, 200, resp.Code)
	datasource.AssertExpectations(t)
}

func TestCryptomusPayoutWebhook_RejectsPaymentKeySignature(t *testing.T) {
	router, datasource := setupRouter()

	// Payout callbacks verify under the payout key; a payment key signature
	// must not cross over.
	body := signedCryptomusBody(t, "wdl_test-1", "paid", testPaymentKey, signature.RawJSON)
	resp := postWebhook(router, "/webhooks/cryptomus/payout", body, nil)

	assert.Equal(t, 401, resp.Code)
	datasource.AssertNotCalled(t, "GetRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestKopokopoWebhook_SuccessfulPayment(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindDeposit, model.MethodMobileMoney)
	record.ProviderRef = "res-777"

	body := []byte(`{"data":{"id":"res-777","attributes":{"status":"Success"}},"_links":{"self":"https://api.kopokopo.test/api/v1/incoming_payments/res-777"}}`)
	sign, err := signature.Sign(body, testKopokopoKey, signature.HMACSHA256)
	require.NoError(t, err)

	datasource.On("GetRecordByProviderRef", mock.Anything, model.KindDeposit, "res-777").Return(record, nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.MatchedBy(func(e *model.ProviderEvent) bool {
		return e.Provider == gateway.ProviderKopokopo && e.ResourceID == "res-777"
	})).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)

	resp := postWebhook(router, "/webhooks/kopokopo", body, map[string]string{"X-KopoKopo-Signature": sign})

	assert.Equal(t, 200, resp.Code)
	datasource.AssertExpectations(t)
}

func TestKopokopoWebhook_TamperedBody(t *testing.T) {
	router, datasource := setupRouter()

	body := []byte(`{"data":{"id":"res-777","attributes":{"status":"Success"}}}`)
	sign, err := signature.Sign(body, testKopokopoKey, signature.HMACSHA256)
	require.NoError(t, err)
	tampered := []byte(`{"data":{"id":"res-778","attributes":{"status":"Success"}}}`)

	resp := postWebhook(router, "/webhooks/kopokopo", tampered, map[string]string{"X-KopoKopo-Signature": sign})

	assert.Equal(t, 401, resp.Code)
	datasource.AssertNotCalled(t, "GetRecordByProviderRef", mock.Anything, mock.Anything, mock.Anything)
}

func TestKopokopoWebhook_ResourceIDFromSelfLink(t *testing.T) {
	router, datasource := setupRouter()
	record := testRecord(model.KindDeposit, model.MethodMobileMoney)
	record.ProviderRef = "res-555"

	body := []byte(`{"data":{"attributes":{"status":"Failed"}},"_links":{"self":"https://api.kopokopo.test/api/v1/incoming_payments/res-555"}}`)
	sign, err := signature.Sign(body, testKopokopoKey, signature.HMACSHA256)
	require.NoError(t, err)

	datasource.On("GetRecordByProviderRef", mock.Anything, model.KindDeposit, "res-555").Return(record, nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusFailed).Return(true, nil)

	resp := postWebhook(router, "/webhooks/kopokopo", body, map[string]string{"X-KopoKopo-Signature": sign})

	assert.Equal(t, 200, resp.Code)
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
