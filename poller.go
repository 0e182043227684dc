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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/model"
)

var pollerTracer = otel.Tracer("haven.poller")

var errStillPending = errors.New("provider status still pending")

// PollPaymentStatus polls the provider at a fixed interval until the record
// reaches a terminal status or the poll window closes. A terminal status is
// reconciled through the same path a webhook takes, so a webhook landing
// mid-poll is harmless. Transport errors count as still-pending and are
// retried; a provider-level rejection stops the poll immediately.
func (h *Haven) PollPaymentStatus(ctx context.Context, record *model.Record) (*model.Record, error) {
	ctx, span := pollerTracer.Start(ctx, "PollPaymentStatus")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", record.RecordID))

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, time.Duration(conf.Poller.TimeoutSec)*time.Second)
	defer cancel()

	var terminal string
	operation := func() error {
		status, err := h.providerStatus(pollCtx, record)
		if err != nil {
			if gateway.IsProvider(err) {
				return backoff.Permanent(err)
			}
			// Transport failures are indistinguishable from a slow provider;
			// keep polling until the window closes.
			return err
		}
		if !model.IsTerminal(status) {
			return errStillPending
		}
		terminal = status
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(time.Duration(conf.Poller.IntervalSec)*time.Second), pollCtx)
	if err := backoff.Retry(operation, bo); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStillPending) {
			span.AddEvent("Poll window closed without a terminal status")
			return record, apierror.NewAPIError(apierror.ErrTimeout, fmt.Sprintf("no terminal status for %s within %ds", record.RecordID, conf.Poller.TimeoutSec), nil)
		}
		span.RecordError(err)
		return record, err
	}

	provider, resourceID := h.reconcileKey(record)
	if err := h.ApplyPaymentStatus(ctx, provider, resourceID, record, terminal); err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrDuplicate {
			// A webhook got there first. The ledger already holds the verdict.
			span.AddEvent("Webhook reconciled the record mid-poll")
		} else {
			return record, err
		}
	}
	return h.datasource.GetRecord(ctx, record.Kind, record.RecordID)
}

// providerStatus queries the provider owning the record and folds the answer
// into the ledger state machine.
func (h *Haven) providerStatus(ctx context.Context, record *model.Record) (string, error) {
	switch record.Method {
	case model.MethodCrypto:
		if h.crypto == nil {
			return "", apierror.NewAPIError(apierror.ErrBadRequest, "crypto provider is not configured", nil)
		}
		var status string
		var err error
		if record.Kind == model.KindWithdrawal {
			status, err = h.crypto.PayoutStatus(ctx, record.RecordID)
		} else {
			status, err = h.crypto.PaymentStatus(ctx, record.RecordID)
		}
		if err != nil {
			return "", err
		}
		return gateway.MapCryptomusStatus(status), nil
	case model.MethodMobileMoney:
		if h.mpesa == nil {
			return "", apierror.NewAPIError(apierror.ErrBadRequest, "mobile money provider is not configured", nil)
		}
		if record.ProviderRef == "" {
			return "", apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("record %s has no provider reference to poll", record.RecordID), nil)
		}
		status, err := h.mpesa.PaymentStatus(ctx, record.ProviderRef)
		if err != nil {
			return "", err
		}
		return gateway.MapKopokopoStatus(status), nil
	default:
		return "", apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("unknown payment method %s", record.Method), nil)
	}
}

// reconcileKey returns the dedup key the poller shares with the webhook
// handler for a record: the order id for crypto flows, the provider resource
// id for mobile money.
func (h *Haven) reconcileKey(record *model.Record) (provider, resourceID string) {
	if record.Method == model.MethodMobileMoney {
		return gateway.ProviderKopokopo, record.ProviderRef
	}
	return gateway.ProviderCryptomus, record.RecordID
}
