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
	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/database"
	"github.com/havenpay/haven/gateway"
)

// Haven is the reconciliation service. It owns the ledger datasource and the
// provider gateways; webhook handlers, the status poller and the API all go
// through it.
type Haven struct {
	datasource database.IDataSource
	crypto     gateway.CryptoProvider
	mpesa      gateway.MobileMoneyProvider
}

func NewHaven(db database.IDataSource) (*Haven, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	haven := &Haven{datasource: db}
	if configuration.Cryptomus.Enabled() {
		haven.crypto = gateway.NewCryptomus(configuration.Cryptomus)
	}
	if configuration.Kopokopo.Enabled() {
		haven.mpesa = gateway.NewKopokopo(configuration.Kopokopo)
	}
	return haven, nil
}

// NewHavenWithProviders wires explicit gateways, bypassing config. Used by
// tests and by callers that manage provider construction themselves.
func NewHavenWithProviders(db database.IDataSource, crypto gateway.CryptoProvider, mpesa gateway.MobileMoneyProvider) *Haven {
	return &Haven{datasource: db, crypto: crypto, mpesa: mpesa}
}
