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
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindDeposit    = "DEPOSIT"
	KindWithdrawal = "WITHDRAWAL"

	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"

	MethodCrypto      = "crypto"
	MethodMobileMoney = "mobile-money"
)

// Record represents a single payment attempt tracked through its lifecycle,
// either a deposit into or a withdrawal out of a user's escrow balance.
type Record struct {
	RecordID    string                 `json:"record_id"`
	OwnerID     string                 `json:"owner_id"`
	Kind        string                 `json:"kind"`
	Method      string                 `json:"method"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Status      string                 `json:"status"`
	ProviderRef string                 `json:"provider_reference,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// IsTerminal reports whether a record status accepts no further transitions.
func IsTerminal(status string) bool {
	return status == StatusPaid || status == StatusFailed
}

// CanTransition reports whether a record may move from its current status to
// the target status. Transitions are monotonic: only PENDING records move, with
// the single exception that PAID outranks FAILED when both verdicts arrive for
// the same record from the poller and a webhook.
func (r *Record) CanTransition(target string) bool {
	if !IsTerminal(target) {
		return false
	}
	if r.Status == StatusPending {
		return true
	}
	return r.Status == StatusFailed && target == StatusPaid
}
