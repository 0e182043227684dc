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
package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/havenpay/haven/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Record methods

func (m *MockDataSource) CreateRecord(ctx context.Context, record *model.Record) (*model.Record, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *MockDataSource) GetRecord(ctx context.Context, kind, id string) (*model.Record, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *MockDataSource) GetRecordByProviderRef(ctx context.Context, kind, providerRef string) (*model.Record, error) {
	args := m.Called(ctx, kind, providerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *MockDataSource) UpdateProviderRef(ctx context.Context, kind, id, providerRef string) error {
	args := m.Called(ctx, kind, id, providerRef)
	return args.Error(0)
}

func (m *MockDataSource) ResolveRecordStatus(ctx context.Context, kind, id, status string) (bool, error) {
	args := m.Called(ctx, kind, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetRecordsByOwner(ctx context.Context, kind, ownerID string, limit, offset int) ([]model.Record, error) {
	args := m.Called(ctx, kind, ownerID, limit, offset)
	return args.Get(0).([]model.Record), args.Error(1)
}

// Balance methods

func (m *MockDataSource) CreditBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error {
	args := m.Called(ctx, ownerID, currency, amount)
	return args.Error(0)
}

func (m *MockDataSource) DebitBalance(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, ownerID, currency, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetBalances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]model.Balance), args.Error(1)
}

// Event methods

func (m *MockDataSource) CreateProviderEvent(ctx context.Context, event *model.ProviderEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}
