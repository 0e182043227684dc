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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/notification"
	"github.com/havenpay/haven/model"
)

var reconcileTracer = otel.Tracer("haven.reconciliation")

// ApplyPaymentStatus folds a provider-reported status into the ledger exactly
// once. Both the webhook handlers and the status poller land here, keyed on
// the same provider resource id, so whichever arrives first wins and the other
// becomes a no-op.
//
// Ordering matters: the tombstone is written before the status transition.
// A resource id that already has a tombstone is a replayed delivery and is
// acknowledged without touching the record or any balance.
func (h *Haven) ApplyPaymentStatus(ctx context.Context, provider, resourceID string, record *model.Record, status string) error {
	ctx, span := reconcileTracer.Start(ctx, "ApplyPaymentStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", provider),
		attribute.String("record.id", record.RecordID),
		attribute.String("record.status", status),
	)

	if !model.IsTerminal(status) {
		// Still in flight on the provider side. Acknowledge and wait for the
		// next delivery or poll.
		span.AddEvent("Non-terminal status, nothing to reconcile")
		return nil
	}

	created, err := h.datasource.CreateProviderEvent(ctx, &model.ProviderEvent{
		Provider:   provider,
		ResourceID: resourceID,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !created {
		span.AddEvent("Duplicate delivery", trace.WithAttributes(attribute.String("resource.id", resourceID)))
		return apierror.NewAPIError(apierror.ErrDuplicate, fmt.Sprintf("event %s from %s already processed", resourceID, provider), nil)
	}

	applied, err := h.datasource.ResolveRecordStatus(ctx, record.Kind, record.RecordID, status)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !applied {
		// The record already carries a terminal verdict this one cannot
		// displace. The tombstone above still blocks future replays.
		span.AddEvent("Status transition not applicable")
		return nil
	}

	if err := h.settleBalance(ctx, record, status); err != nil {
		span.RecordError(err)
		notification.NotifyError(err)
		return err
	}

	h.notifyMerchant(record, status)
	span.AddEvent("Status reconciled", trace.WithAttributes(attribute.String("resource.id", resourceID)))
	return nil
}

// settleBalance applies the balance consequence of a terminal transition. A
// paid deposit credits the owner; a failed withdrawal refunds the debit taken
// at initiation. A paid withdrawal and a failed deposit move no money.
func (h *Haven) settleBalance(ctx context.Context, record *model.Record, status string) error {
	switch {
	case status == model.StatusPaid && record.Kind == model.KindDeposit:
		return h.datasource.CreditBalance(ctx, record.OwnerID, record.Currency, record.Amount)
	case status == model.StatusFailed && record.Kind == model.KindWithdrawal:
		return h.datasource.CreditBalance(ctx, record.OwnerID, record.Currency, record.Amount)
	}
	return nil
}

func (h *Haven) notifyMerchant(record *model.Record, status string) {
	notified := *record
	notified.Status = status
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   getEventFromRecord(notified.Kind, status),
			Payload: notified,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
