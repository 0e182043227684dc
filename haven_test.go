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
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/database/mocks"
	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/model"
)

// mockCryptoProvider is a testify mock of the crypto gateway.
type mockCryptoProvider struct {
	mock.Mock
}

func (m *mockCryptoProvider) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResult), args.Error(1)
}

func (m *mockCryptoProvider) CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.PayoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PayoutResult), args.Error(1)
}

func (m *mockCryptoProvider) PaymentStatus(ctx context.Context, orderID string) (string, error) {
	args := m.Called(ctx, orderID)
	return args.String(0), args.Error(1)
}

func (m *mockCryptoProvider) PayoutStatus(ctx context.Context, orderID string) (string, error) {
	args := m.Called(ctx, orderID)
	return args.String(0), args.Error(1)
}

// mockMobileMoneyProvider is a testify mock of the mobile money gateway.
type mockMobileMoneyProvider struct {
	mock.Mock
}

func (m *mockMobileMoneyProvider) StkPush(ctx context.Context, req gateway.StkPushRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockMobileMoneyProvider) PaymentStatus(ctx context.Context, providerRef string) (string, error) {
	args := m.Called(ctx, providerRef)
	return args.String(0), args.Error(1)
}

// newTestHaven wires a service around mocks with a minimal mock config. The
// merchant webhook URL is left empty so notifications are no-ops in tests.
func newTestHaven() (*Haven, *mocks.MockDataSource, *mockCryptoProvider, *mockMobileMoneyProvider) {
	config.MockConfig(&config.Configuration{
		ProjectName: "Haven Test",
		Poller:      config.PollerConfig{IntervalSec: 1, TimeoutSec: 2},
	})
	datasource := new(mocks.MockDataSource)
	crypto := new(mockCryptoProvider)
	mpesa := new(mockMobileMoneyProvider)
	return NewHavenWithProviders(datasource, crypto, mpesa), datasource, crypto, mpesa
}

func pendingRecord(kind, method string) *model.Record {
	id := "dep_test-1"
	if kind == model.KindWithdrawal {
		id = "wdl_test-1"
	}
	return &model.Record{
		RecordID:  id,
		OwnerID:   "owner-1",
		Kind:      kind,
		Method:    method,
		Amount:    decimal.NewFromInt(150),
		Currency:  "USD",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
}
