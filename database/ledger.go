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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/model"
)

// tableForKind maps a record kind to its collection. Kind is always one of the
// model constants, never caller input.
func tableForKind(kind string) (string, error) {
	switch kind {
	case model.KindDeposit:
		return "deposits", nil
	case model.KindWithdrawal:
		return "withdrawals", nil
	default:
		return "", apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("Unknown record kind '%s'", kind), nil)
	}
}

// CreateRecord inserts a new pending ledger record into its collection and
// assigns it an id.
func (d Datasource) CreateRecord(ctx context.Context, record *model.Record) (*model.Record, error) {
	table, err := tableForKind(record.Kind)
	if err != nil {
		return nil, err
	}

	prefix := "dep"
	if record.Kind == model.KindWithdrawal {
		prefix = "wdl"
	}
	record.RecordID = model.GenerateUUIDWithSuffix(prefix)
	record.Status = model.StatusPending
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	metaDataJSON, err := json.Marshal(record.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO `+table+` (record_id, owner_id, method, amount, currency, status, provider_reference, meta_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, record.RecordID, record.OwnerID, record.Method, record.Amount, record.Currency, record.Status,
		sql.NullString{String: record.ProviderRef, Valid: record.ProviderRef != ""}, metaDataJSON,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Record with this ID already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create record", err)
	}
	return record, nil
}

// GetRecord retrieves a ledger record by its id.
func (d Datasource) GetRecord(ctx context.Context, kind, id string) (*model.Record, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT record_id, owner_id, method, amount, currency, status, provider_reference, meta_data, created_at, updated_at
		FROM `+table+`
		WHERE record_id = $1
	`, id)
	return scanRecord(row, kind, id)
}

// GetRecordByProviderRef retrieves the record an inbound webhook correlates
// to, using the provider's own reference stored at initiation time.
func (d Datasource) GetRecordByProviderRef(ctx context.Context, kind, providerRef string) (*model.Record, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT record_id, owner_id, method, amount, currency, status, provider_reference, meta_data, created_at, updated_at
		FROM `+table+`
		WHERE provider_reference = $1
	`, providerRef)
	return scanRecord(row, kind, providerRef)
}

// UpdateProviderRef stores the provider-assigned reference once the payment or
// payout has been initiated.
func (d Datasource) UpdateProviderRef(ctx context.Context, kind, id, providerRef string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE `+table+`
		SET provider_reference = $2, updated_at = NOW()
		WHERE record_id = $1
	`, id, providerRef)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update provider reference", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Record with ID '%s' not found", id), nil)
	}
	return nil
}

// ResolveRecordStatus applies a terminal status with a compare-and-set guard:
// only PENDING records transition, except that PAID may override FAILED when
// the poller and a webhook disagree. Returns false when the guard rejects the
// write, which callers treat as "already resolved."
func (d Datasource) ResolveRecordStatus(ctx context.Context, kind, id, status string) (bool, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return false, err
	}
	if !model.IsTerminal(status) {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("'%s' is not a terminal status", status), nil)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE `+table+`
		SET status = $2, updated_at = NOW()
		WHERE record_id = $1
		  AND (status = $3 OR (status = $4 AND $2 = $5))
	`, id, status, model.StatusPending, model.StatusFailed, model.StatusPaid)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve record status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	return affected > 0, nil
}

// GetRecordsByOwner retrieves an owner's records, newest first.
func (d Datasource) GetRecordsByOwner(ctx context.Context, kind, ownerID string, limit, offset int) ([]model.Record, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT record_id, owner_id, method, amount, currency, status, provider_reference, meta_data, created_at, updated_at
		FROM `+table+`
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve records", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		record := model.Record{Kind: kind}
		var providerRef sql.NullString
		var metaDataJSON []byte
		err = rows.Scan(&record.RecordID, &record.OwnerID, &record.Method, &record.Amount, &record.Currency,
			&record.Status, &providerRef, &metaDataJSON, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan record data", err)
		}
		record.ProviderRef = providerRef.String
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &record.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row *sql.Row, kind, key string) (*model.Record, error) {
	record := model.Record{Kind: kind}
	var providerRef sql.NullString
	var metaDataJSON []byte

	err := row.Scan(&record.RecordID, &record.OwnerID, &record.Method, &record.Amount, &record.Currency,
		&record.Status, &providerRef, &metaDataJSON, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Record '%s' not found", key), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan record data", err)
	}
	record.ProviderRef = providerRef.String
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &record.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return &record, nil
}
