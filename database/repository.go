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

	"github.com/havenpay/haven/model"
)

// IDataSource defines the interface for ledger store operations, grouping related functionalities.
type IDataSource interface {
	record  // Interface for deposit/withdrawal record operations
	balance // Interface for user balance operations
	event   // Interface for provider event tombstone operations
}

// record defines methods for handling ledger records. kind selects the
// collection (deposits or withdrawals).
type record interface {
	CreateRecord(ctx context.Context, record *model.Record) (*model.Record, error)                           // Creates a new pending record
	GetRecord(ctx context.Context, kind, id string) (*model.Record, error)                                   // Retrieves a record by ID
	GetRecordByProviderRef(ctx context.Context, kind, providerRef string) (*model.Record, error)             // Retrieves a record by provider reference
	UpdateProviderRef(ctx context.Context, kind, id, providerRef string) error                               // Stores the provider's reference after initiation
	ResolveRecordStatus(ctx context.Context, kind, id, status string) (bool, error)                          // Compare-and-set status transition; false if not applied
	GetRecordsByOwner(ctx context.Context, kind, ownerID string, limit, offset int) ([]model.Record, error)  // Retrieves an owner's records
}

// balance defines the atomic mutations of user balances.
type balance interface {
	CreditBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error       // Atomic increment, creating the row if absent
	DebitBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) // Conditional decrement; false on insufficient funds
	GetBalances(ctx context.Context, ownerID string) ([]model.Balance, error)                        // Retrieves all balances of an owner
}

// event defines the dedup tombstone write.
type event interface {
	CreateProviderEvent(ctx context.Context, event *model.ProviderEvent) (bool, error) // Atomic create-if-absent; false if already processed
}
