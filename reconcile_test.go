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

func TestApplyPaymentStatus_PaidDepositCreditsOnce(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)

	datasource.On("CreateProviderEvent", mock.Anything, mock.MatchedBy(func(e *model.ProviderEvent) bool {
		return e.Provider == gateway.ProviderCryptomus && e.ResourceID == record.RecordID
	})).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusPaid).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusPaid)
	require.NoError(t, err)
	datasource.AssertExpectations(t)
	datasource.AssertNumberOfCalls(t, "CreditBalance", 1)
}

func TestApplyPaymentStatus_DuplicateDeliveryIsNoOp(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)

	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(false, nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusPaid)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrDuplicate, apiErr.Code)

	datasource.AssertNotCalled(t, "ResolveRecordStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatus_NonTerminalIsAcknowledged(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusPending)
	require.NoError(t, err)

	datasource.AssertNotCalled(t, "CreateProviderEvent", mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "ResolveRecordStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatus_FailedWithdrawalRefunds(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindWithdrawal, model.MethodCrypto)

	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindWithdrawal, record.RecordID, model.StatusFailed).Return(true, nil)
	datasource.On("CreditBalance", mock.Anything, record.OwnerID, record.Currency, record.Amount).Return(nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusFailed)
	require.NoError(t, err)
	datasource.AssertExpectations(t)
}

func TestApplyPaymentStatus_PaidWithdrawalMovesNoMoney(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindWithdrawal, model.MethodCrypto)

	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindWithdrawal, record.RecordID, model.StatusPaid).Return(true, nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusPaid)
	require.NoError(t, err)

	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	datasource.AssertNotCalled(t, "DebitBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatus_FailedDepositMovesNoMoney(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodMobileMoney)
	record.ProviderRef = "res-1"

	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusFailed).Return(true, nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderKopokopo, record.ProviderRef, record, model.StatusFailed)
	require.NoError(t, err)

	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatus_LosingVerdictKeepsTombstone(t *testing.T) {
	service, datasource, _, _ := newTestHaven()
	record := pendingRecord(model.KindDeposit, model.MethodCrypto)
	record.Status = model.StatusPaid

	// A FAILED verdict arriving after PAID transitions nothing, but its
	// tombstone still blocks replays of the same delivery.
	datasource.On("CreateProviderEvent", mock.Anything, mock.Anything).Return(true, nil)
	datasource.On("ResolveRecordStatus", mock.Anything, model.KindDeposit, record.RecordID, model.StatusFailed).Return(false, nil)

	err := service.ApplyPaymentStatus(context.Background(), gateway.ProviderCryptomus, record.RecordID, record, model.StatusFailed)
	require.NoError(t, err)

	datasource.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetEventFromRecord(t *testing.T) {
	assert.Equal(t, "deposit.paid", getEventFromRecord(model.KindDeposit, model.StatusPaid))
	assert.Equal(t, "deposit.failed", getEventFromRecord(model.KindDeposit, model.StatusFailed))
	assert.Equal(t, "withdrawal.paid", getEventFromRecord(model.KindWithdrawal, model.StatusPaid))
	assert.Equal(t, "withdrawal.failed", getEventFromRecord(model.KindWithdrawal, model.StatusFailed))
}
