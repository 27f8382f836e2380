package db

import (
	"context"

	"payrolladmin/internal/domain/auth"
	"payrolladmin/internal/platform/config"
	"payrolladmin/internal/platform/querier"
)

func Seed(ctx context.Context, q querier.Querier, cfg config.Config) error {
	if _, err := ensureTenant(ctx, q, cfg.SeedTenantName); err != nil {
		return err
	}
	if err := ensurePermissions(ctx, q); err != nil {
		return err
	}
	return ensureRolePermissions(ctx, q)
}

func ensureTenant(ctx context.Context, q querier.Querier, name string) (string, error) {
	var id string
	err := q.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = q.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensurePermissions(ctx context.Context, q querier.Querier) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := q.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRolePermissions(ctx context.Context, q querier.Querier) error {
	for roleName, perms := range auth.RolePermissions {
		for _, permKey := range perms {
			_, err := q.Exec(ctx, "INSERT INTO role_permissions (role_name, permission_key) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleName, permKey)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
