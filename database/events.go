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
	"time"

	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/model"
)

// CreateProviderEvent writes the dedup tombstone for a provider event. The
// insert is the exclusion point for racing deliveries of the same resource id:
// ON CONFLICT DO NOTHING makes it an atomic create-if-absent, and exactly one
// caller observes true. A false return means the event was already processed.
func (d Datasource) CreateProviderEvent(ctx context.Context, event *model.ProviderEvent) (bool, error) {
	event.CreatedAt = time.Now()

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO provider_events (provider, resource_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, resource_id) DO NOTHING
	`, event.Provider, event.ResourceID, event.CreatedAt)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record provider event", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read event insert result", err)
	}
	return affected > 0, nil
}
