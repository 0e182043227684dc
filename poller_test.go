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
package haven

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/model"
)

func TestPollPaymentStatus_TerminalOnFirstPoll(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)
	paid := *record
	paid.Status = model.StatusPaid

	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("paid", nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)
	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(&paid, nil)

	got, err := service.PollPaymentStatus(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	datasource.AssertExpectations(t)
}

func TestPollPaymentStatus_TransportErrorIsRetried(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)
	paid := *record
	paid.Status = model.StatusPaid

	transportErr := &gateway.TransportError{Provider: gateway.ProviderCryptomus, Endpoint: "payment/info", Err: context.DeadlineExceeded}
	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("", transportErr).Once()
	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("paid", nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)
	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(&paid, nil)

	got, err := service.PollPaymentStatus(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	crypto.AssertNumberOfCalls(t, "PaymentStatus", 2)
}

func TestPollPaymentStatus_ProviderErrorStopsPolling(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)

	providerErr := &gateway.ProviderError{Provider: gateway.ProviderCryptomus, Endpoint: "payment/info", State: 1, Message: "payment not found"}
	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("", providerErr)

	_, err := service.PollPaymentStatus(context.Background(), record)
	require.Error(t, err)
	assert.True(t, gateway.IsProvider(err))
	crypto.AssertNumberOfCalls(t, "PaymentStatus", 1)
	datasource.AssertNotCalled(t, "CreateProviderEvent", mock.Anything, mock.Anything)
}

func TestPollPaymentStatus_WindowClosesWhilePending(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)

	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("check", nil)

	_, err := service.PollPaymentStatus(context.Background(), record)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrTimeout, apiErr.Code)

	datasource.AssertNotCalled(t, "ResolveRecordStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPaymentStatus_WebhookWonMidPoll(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)
	paid := *record
	paid.Status = model.StatusPaid

	// The tombstone already exists: a webhook reconciled the record between
	// the provider answering and the poller applying the verdict.
	crypto.On("PaymentStatus", mock.Anything, record.RecordID).Return("paid", nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(false, nil)
	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(&paid, nil)

	got, err := service.PollPaymentStatus(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPaymentStatus_MobileMoneyUsesProviderRef(t *testing.T) {
	service, datasource, _, mpesa := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodMobileMoney)
	record.ProviderRef = "res-42"
	paid := *record
	paid.Status = model.StatusPaid

	mpesa.On("PaymentStatus", mock.Anything, "res-42").Return("Success", nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.MatchedBy(func(e *model.ProviderEvent) bool {
		return e.Provider == gateway.ProviderKopokopo && e.ResourceID == "res-42"
	})).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)
	datasource.On("GetRecord", mock.Anything, model.KindDeposit, record.RecordID).Return(&paid, nil)

	got, err := service.PollPaymentStatus(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	datasource.AssertExpectations(t)
}

func TestPollPaymentStatus_WithdrawalPollsPayoutStatus(t *testing.T) {
	service, datasource, crypto, _ := newTestHaven()
	record := pendingRecord(model.KindWithdrawal, model.MethodCrypto)
	paid := *record
	paid.Status = model.StatusPaid

	crypto.On("PayoutStatus", mock.Anything, record.RecordID).Return("paid", nil)
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindWithdrawal, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("GetRecord", mock.Anything, model.KindWithdrawal, record.RecordID).Return(&paid, nil)

	got, err := service.PollPaymentStatus(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	crypto.AssertNotCalled(t, "PaymentStatus", mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
