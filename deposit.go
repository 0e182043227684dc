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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/notification"
	"github.com/havenpay/haven/model"
)

var depositTracer = otel.Tracer("haven.deposits")

// CryptoDeposit is the outcome of a crypto deposit initiation: the pending
// ledger record plus the hosted payment URL the user is redirected to.
type CryptoDeposit struct {
	Record     *model.Record `json:"record"`
	PaymentURL string        `json:"payment_url"`
}

// InitiateCryptoDeposit opens a pending deposit record and asks the crypto
// provider for a hosted payment keyed on the record id. The balance is only
// credited later, when reconciliation confirms the payment.
func (h *Haven) InitiateCryptoDeposit(ctx context.Context, ownerID string, amount decimal.Decimal, currency string) (*CryptoDeposit, error) {
	ctx, span := depositTracer.Start(ctx, "InitiateCryptoDeposit")
	defer span.End()

	if h.crypto == nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "crypto provider is not configured", nil)
	}

	record, err := h.datasource.CreateRecord(ctx, &model.Record{
		OwnerID:  ownerID,
		Kind:     model.KindDeposit,
		Method:   model.MethodCrypto,
		Amount:   amount,
		Currency: currency,
		Status:   model.StatusPending,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("record.id", record.RecordID))

	result, err := h.crypto.CreatePayment(ctx, gateway.PaymentRequest{
		Amount:   amount,
		Currency: currency,
		OrderID:  record.RecordID,
	})
	if err != nil {
		span.RecordError(err)
		if gateway.IsProvider(err) {
			// The provider rejected the order outright; the record can never
			// be paid.
			h.failRecord(ctx, record)
		}
		return nil, err
	}

	if err := h.datasource.UpdateProviderRef(ctx, record.Kind, record.RecordID, result.UUID); err != nil {
		span.RecordError(err)
		notification.NotifyError(err)
	}
	record.ProviderRef = result.UUID

	span.AddEvent("Crypto deposit initiated", trace.WithAttributes(attribute.String("provider.ref", result.UUID)))
	return &CryptoDeposit{Record: record, PaymentURL: result.URL}, nil
}

// InitiateMobileMoneyDeposit opens a pending deposit record and fires an STK
// push at the subscriber's phone. There is no redirect in this flow, so the
// call polls the provider inline until the push is confirmed, declined, or the
// poll window closes. A record still pending on return may yet be resolved by
// the provider's webhook.
func (h *Haven) InitiateMobileMoneyDeposit(ctx context.Context, ownerID string, amount decimal.Decimal, currency, phoneNumber string) (*model.Record, error) {
	ctx, span := depositTracer.Start(ctx, "InitiateMobileMoneyDeposit")
	defer span.End()

	if h.mpesa == nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "mobile money provider is not configured", nil)
	}

	record, err := h.datasource.CreateRecord(ctx, &model.Record{
		OwnerID:  ownerID,
		Kind:     model.KindDeposit,
		Method:   model.MethodMobileMoney,
		Amount:   amount,
		Currency: currency,
		Status:   model.StatusPending,
		MetaData: map[string]interface{}{"phone_number": phoneNumber},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("record.id", record.RecordID))

	resourceID, err := h.mpesa.StkPush(ctx, gateway.StkPushRequest{
		PhoneNumber: phoneNumber,
		Amount:      amount,
		Currency:    currency,
		Reference:   record.RecordID,
	})
	if err != nil {
		span.RecordError(err)
		if gateway.IsProvider(err) {
			h.failRecord(ctx, record)
		}
		return nil, err
	}

	if err := h.datasource.UpdateProviderRef(ctx, record.Kind, record.RecordID, resourceID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	record.ProviderRef = resourceID

	polled, err := h.PollPaymentStatus(ctx, record)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrTimeout {
			span.AddEvent("STK push still pending after poll window")
			return polled, nil
		}
		span.RecordError(err)
		return polled, err
	}
	return polled, nil
}

// failRecord marks a record FAILED after the provider rejected its initiation.
// No money has moved for a deposit at this point, so no balance is touched.
func (h *Haven) failRecord(ctx context.Context, record *model.Record) {
	if _, err := h.datasource.ResolveRecordStatus(ctx, record.Kind, record.RecordID, model.StatusFailed); err != nil {
		notification.NotifyError(err)
	}
	record.Status = model.StatusFailed
}
