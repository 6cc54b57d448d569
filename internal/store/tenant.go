package store

import "context"

// DefaultTenant is used when the context carries no tenant.
const DefaultTenant = "default"

type tenantKey struct{}

// WithTenant scopes every store operation made with the returned context to tenant.
func WithTenant(ctx context.Context, tenant string) context.Context {
	if tenant == "" {
		tenant = DefaultTenant
	}

	return context.WithValue(ctx, tenantKey{}, tenant)
}

// Tenant returns the tenant partition of ctx.
func Tenant(ctx context.Context) string {
	if tenant, ok := ctx.Value(tenantKey{}).(string); ok && tenant != "" {
		return tenant
	}

	return DefaultTenant
}
