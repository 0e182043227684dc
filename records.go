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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenpay/haven/model"
)

var recordTracer = otel.Tracer("haven.records")

// GetRecord retrieves a deposit or withdrawal record by id.
func (h *Haven) GetRecord(ctx context.Context, kind, id string) (*model.Record, error) {
	ctx, span := recordTracer.Start(ctx, "GetRecord")
	defer span.End()

	record, err := h.datasource.GetRecord(ctx, kind, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Record retrieved", trace.WithAttributes(attribute.String("record.id", id)))
	return record, nil
}

// GetRecordByProviderRef retrieves a record by the provider's resource id.
func (h *Haven) GetRecordByProviderRef(ctx context.Context, kind, providerRef string) (*model.Record, error) {
	ctx, span := recordTracer.Start(ctx, "GetRecordByProviderRef")
	defer span.End()

	record, err := h.datasource.GetRecordByProviderRef(ctx, kind, providerRef)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return record, nil
}

// GetRecordsByOwner lists an owner's records of a kind, newest first.
func (h *Haven) GetRecordsByOwner(ctx context.Context, kind, ownerID string, limit, offset int) ([]model.Record, error) {
	ctx, span := recordTracer.Start(ctx, "GetRecordsByOwner")
	defer span.End()

	records, err := h.datasource.GetRecordsByOwner(ctx, kind, ownerID, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records, nil
}

// GetBalances lists an owner's balances across currencies.
func (h *Haven) GetBalances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	ctx, span := recordTracer.Start(ctx, "GetBalances")
	defer span.End()

	balances, err := h.datasource.GetBalances(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Balances retrieved", trace.WithAttributes(attribute.String("owner.id", ownerID)))
	return balances, nil
}
