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
	"database/sql"
	"log"

	_ "github.com/lib/pq"

	"github.com/havenpay/haven/config"
)

// Datasource wraps the postgres connection backing the ledger store.
type Datasource struct {
	Conn *sql.DB
}

// NewDataSource connects to postgres using the configured DNS and bootstraps
// the schema. Each call returns an independent datasource; the connection's
// lifecycle belongs to the caller, there is no package-level instance.
func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createLedgerTables(db)
	if err != nil {
		return nil, err
	}
	err = createBalanceTable(db)
	if err != nil {
		return nil, err
	}
	err = createProviderEventTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createLedgerTables creates the deposits and withdrawals tables. The two
// kinds share a shape but live in separate tables so each provider flow
// correlates webhooks against its own collection.
func createLedgerTables(db *sql.DB) error {
	for _, table := range []string{"deposits", "withdrawals"} {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS ` + table + ` (
				record_id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				method TEXT NOT NULL,
				amount NUMERIC NOT NULL CHECK (amount > 0),
				currency TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				provider_reference TEXT,
				meta_data JSONB,
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_` + table + `_provider_ref ON ` + table + ` (provider_reference);
			CREATE INDEX IF NOT EXISTS idx_` + table + `_owner ON ` + table + ` (owner_id);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

func createBalanceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS balances (
			owner_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount NUMERIC NOT NULL DEFAULT 0 CHECK (amount >= 0),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (owner_id, currency)
		)
	`)
	return err
}

func createProviderEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provider_events (
			provider TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (provider, resource_id)
		)
	`)
	return err
}
