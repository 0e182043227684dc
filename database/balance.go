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

	"github.com/shopspring/decimal"

	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/model"
)

// CreditBalance adds amount to an owner's balance in one currency. The upsert
// increments in a single statement so concurrent credits to the same owner
// never lose an update.
func (d Datasource) CreditBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO balances (owner_id, currency, amount, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner_id, currency)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()
	`, ownerID, currency, amount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit balance", err)
	}
	return nil
}

// DebitBalance subtracts amount from an owner's balance if and only if the
// balance covers it. The sufficiency check and the decrement are one
// statement, so the gate cannot race against a concurrent debit. Returns false
// when funds are insufficient or no balance row exists.
func (d Datasource) DebitBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE balances
		SET amount = amount - $3, updated_at = NOW()
		WHERE owner_id = $1 AND currency = $2 AND amount >= $3
	`, ownerID, currency, amount)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit balance", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read debit result", err)
	}
	return affected > 0, nil
}

// GetBalances retrieves all currency balances held by an owner.
func (d Datasource) GetBalances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT owner_id, currency, amount, updated_at
		FROM balances
		WHERE owner_id = $1
		ORDER BY currency
	`, ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balances", err)
	}
	defer rows.Close()

	balances := []model.Balance{}
	for rows.Next() {
		balance := model.Balance{}
		err = rows.Scan(&balance.OwnerID, &balance.Currency, &balance.Amount, &balance.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan balance data", err)
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}
