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
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/notification"
	"github.com/havenpay/haven/model"
)

var withdrawalTracer = otel.Tracer("haven.withdrawals")

// CryptoWithdrawalRequest is a request to pay out crypto to a user's address.
type CryptoWithdrawalRequest struct {
	OwnerID  string
	Amount   decimal.Decimal
	Currency string
	Network  string
	Address  string
}

// InitiateCryptoWithdrawal debits the owner's balance and asks the crypto
// provider for a payout keyed on the new record id.
//
// The debit happens before the provider call. Funds a payout may consume must
// never be spendable twice, so the balance is reserved up front and refunded
// only if the withdrawal reaches FAILED. A transport failure after the debit
// leaves the record pending and hands it to the poller.
func (h *Haven) InitiateCryptoWithdrawal(ctx context.Context, req CryptoWithdrawalRequest) (*model.Record, error) {
	ctx, span := withdrawalTracer.Start(ctx, "InitiateCryptoWithdrawal")
	defer span.End()

	if h.crypto == nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "crypto provider is not configured", nil)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "withdrawal amount must be positive", req)
	}

	debited, err := h.datasource.DebitBalance(ctx, req.OwnerID, req.Currency, req.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !debited {
		span.AddEvent("Insufficient balance")
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("insufficient %s balance for withdrawal", req.Currency), nil)
	}

	record, err := h.datasource.CreateRecord(ctx, &model.Record{
		OwnerID:  req.OwnerID,
		Kind:     model.KindWithdrawal,
		Method:   model.MethodCrypto,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   model.StatusPending,
		MetaData: map[string]interface{}{"network": req.Network, "address": req.Address},
	})
	if err != nil {
		span.RecordError(err)
		// The debit stands with no record to resolve it. Refund immediately.
		if cerr := h.datasource.CreditBalance(ctx, req.OwnerID, req.Currency, req.Amount); cerr != nil {
			notification.NotifyError(cerr)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("record.id", record.RecordID))

	result, err := h.crypto.CreatePayout(ctx, gateway.PayoutRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Network:  req.Network,
		Address:  req.Address,
		OrderID:  record.RecordID,
	})
	if err != nil {
		span.RecordError(err)
		if gateway.IsProvider(err) {
			// The provider will never execute this payout. Fail the record and
			// release the reserved funds.
			h.failRecord(ctx, record)
			if cerr := h.datasource.CreditBalance(ctx, req.OwnerID, req.Currency, req.Amount); cerr != nil {
				notification.NotifyError(cerr)
			}
			return nil, err
		}
		// Transport failure: the payout may or may not have been accepted.
		// Keep the record pending and let the poller settle it.
		span.AddEvent("Payout outcome unknown, deferring to poller")
		go h.pollDetached(record)
		return record, err
	}

	if err := h.datasource.UpdateProviderRef(ctx, record.Kind, record.RecordID, result.UUID); err != nil {
		span.RecordError(err)
		notification.NotifyError(err)
	}
	record.ProviderRef = result.UUID

	span.AddEvent("Crypto withdrawal initiated", trace.WithAttributes(attribute.String("provider.ref", result.UUID)))
	return record, nil
}

// pollDetached resolves a record outside the request lifecycle. A withdrawal
// the provider reports as unknown was never accepted; it is failed and the
// reserved funds are released through the usual reconciliation path.
func (h *Haven) pollDetached(record *model.Record) {
	ctx := context.Background()
	_, err := h.PollPaymentStatus(ctx, record)
	if err == nil {
		return
	}
	if record.Kind == model.KindWithdrawal && gateway.IsProvider(err) {
		provider, resourceID := h.reconcileKey(record)
		if aerr := h.ApplyPaymentStatus(ctx, provider, resourceID, record, model.StatusFailed); aerr != nil {
			notification.NotifyError(aerr)
		}
		return
	}
	notification.NotifyError(err)
}
