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
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

var phoneNumberRule = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// CreateCryptoDeposit is the request body for initiating a crypto deposit.
type CreateCryptoDeposit struct {
	OwnerID  string          `json:"owner_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreateMobileMoneyDeposit is the request body for initiating an M-Pesa STK
// push deposit.
type CreateMobileMoneyDeposit struct {
	OwnerID     string          `json:"owner_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PhoneNumber string          `json:"phone_number"`
}

// CreateWithdrawal is the request body for initiating a crypto payout.
type CreateWithdrawal struct {
	OwnerID  string          `json:"owner_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Network  string          `json:"network"`
	Address  string          `json:"address"`
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok || amount.LessThanOrEqual(decimal.Zero) {
		return validation.NewError("validation_amount", "amount must be a positive number")
	}
	return nil
}

func (d *CreateCryptoDeposit) ValidateCreateCryptoDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.OwnerID, validation.Required),
		validation.Field(&d.Amount, validation.By(positiveAmount)),
		validation.Field(&d.Currency, validation.Required, validation.Length(3, 10)),
	)
}

func (d *CreateMobileMoneyDeposit) ValidateCreateMobileMoneyDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.OwnerID, validation.Required),
		validation.Field(&d.Amount, validation.By(positiveAmount)),
		validation.Field(&d.Currency, validation.Required, validation.Length(3, 10)),
		validation.Field(&d.PhoneNumber, validation.Required, validation.Match(phoneNumberRule)),
	)
}

func (w *CreateWithdrawal) ValidateCreateWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.OwnerID, validation.Required),
		validation.Field(&w.Amount, validation.By(positiveAmount)),
		validation.Field(&w.Currency, validation.Required, validation.Length(3, 10)),
		validation.Field(&w.Network, validation.Required),
		validation.Field(&w.Address, validation.Required),
	)
}
