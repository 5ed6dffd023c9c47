package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// ServerInfraGroups returns the spec currently associated with each known
// service group, so the discovery controller can tell a known service from
// a new one on every tick.
func (s *Store) ServerInfraGroups(ctx context.Context) (map[string]*int64, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT DISTINCT group_name, spec_id FROM server_infra`)
	if err != nil {
		return nil, fmt.Errorf("query server infra groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string]*int64)
	for rows.Next() {
		var groupName string
		var specID *int64
		if err := rows.Scan(&groupName, &specID); err != nil {
			return nil, fmt.Errorf("scan server infra group: %w", err)
		}
		groups[groupName] = specID
	}
	return groups, rows.Err()
}

// ServerInfraPods returns every known ServerInfra row grouped by group_name,
// so the discovery controller can diff a service's current pod names against
// what's persisted and delete rows for pods the service no longer selects.
func (s *Store) ServerInfraPods(ctx context.Context) (map[string][]models.ServerInfra, error) {
	var rows []models.ServerInfra
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM server_infra`); err != nil {
		return nil, fmt.Errorf("query server infra pods: %w", err)
	}

	groups := make(map[string][]models.ServerInfra, len(rows))
	for _, row := range rows {
		groups[row.GroupName] = append(groups[row.GroupName], row)
	}
	return groups, nil
}

// ApplyServerInfraDiff upserts added rows on the (namespace, name) unique
// index and deletes removedIDs, all in one transaction.
func (s *Store) ApplyServerInfraDiff(ctx context.Context, added []models.ServerInfra, removedIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin server infra diff tx: %w", err)
	}
	defer tx.Rollback()

	for _, infra := range added {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO server_infra (spec_id, namespace, name, group_name, resource_type, environment, service_type)
			VALUES (:spec_id, :namespace, :name, :group_name, :resource_type, :environment, :service_type)
			ON CONFLICT (namespace, name) DO UPDATE SET
				spec_id = EXCLUDED.spec_id,
				group_name = EXCLUDED.group_name,
				resource_type = EXCLUDED.resource_type,
				service_type = EXCLUDED.service_type
		`, infra)
		if err != nil {
			return fmt.Errorf("upsert server infra %s/%s: %w", infra.Namespace, infra.Name, err)
		}
	}

	if len(removedIDs) > 0 {
		query, args, err := sqlx.In(`DELETE FROM server_infra WHERE id IN (?)`, removedIDs)
		if err != nil {
			return fmt.Errorf("build server infra delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete removed server infra: %w", err)
		}
	}

	return tx.Commit()
}

// CreateOpenAPISpec inserts a spec, its first active version, and every
// endpoint/parameter discovered for it, returning the new spec's ID.
func (s *Store) CreateOpenAPISpec(ctx context.Context, spec models.OpenAPISpec, endpoints []models.Endpoint) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create spec tx: %w", err)
	}
	defer tx.Rollback()

	var specID int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO openapi_spec (project_id, title, version, base_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, spec.ProjectID, spec.Title, spec.Version, spec.BaseURL).Scan(&specID)
	if err != nil {
		return 0, fmt.Errorf("insert openapi spec: %w", err)
	}

	var versionID int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO openapi_spec_version (spec_id, is_active)
		VALUES ($1, true)
		RETURNING id
	`, specID).Scan(&versionID)
	if err != nil {
		return 0, fmt.Errorf("insert openapi spec version: %w", err)
	}

	for _, endpoint := range endpoints {
		var endpointID int64
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO endpoint (version_id, path, method, summary, description, tag_name, tag_description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, versionID, endpoint.Path, endpoint.Method, endpoint.Summary, endpoint.Description,
			endpoint.TagName, endpoint.TagDescription).Scan(&endpointID)
		if err != nil {
			return 0, fmt.Errorf("insert endpoint %s %s: %w", endpoint.Method, endpoint.Path, err)
		}

		for _, param := range endpoint.Parameters {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO parameter (endpoint_id, kind, name, required, value_type, title, description, default_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, endpointID, param.Kind, param.Name, param.Required, param.ValueType,
				param.Title, param.Description, param.DefaultValue)
			if err != nil {
				return 0, fmt.Errorf("insert parameter %s for endpoint %d: %w", param.Name, endpointID, err)
			}
		}
	}

	return specID, tx.Commit()
}
