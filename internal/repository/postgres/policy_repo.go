package postgres

/*
Файл policy_repo.go отвечает за долговременное хранение конфигурации доступа:
ступени арендаторов, правила коллекций и персональные override'ы товаров.
Слой отделяет хранение в PostgreSQL от мгновенной проверки в памяти шлюза.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PolicyRepo struct {
	pool *pgxpool.Pool
}

// NewPolicyRepo создает пул подключений для конфигурационных данных.
func NewPolicyRepo(ctx context.Context, cfg infra.DatabaseConfig) (*PolicyRepo, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &PolicyRepo{pool: pool}, nil
}

// Ping проверяет доступность базы при старте
func (r *PolicyRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PolicyRepo) Close() {
	r.pool.Close()
}

// GetTenant возвращает запись магазина (включая токен апстрима).
func (r *PolicyRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, catalog_token, default_tier, created_at
		FROM tenants WHERE id = $1`

	t := &domain.Tenant{}
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&t.ID, &t.Name, &t.CatalogToken, &t.DefaultTier, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: tenant %s not found", tenantID)
		}
		return nil, err
	}
	return t, nil
}

// ListTenantIDs — все магазины для холодной загрузки при старте.
func (r *PolicyRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTenantPolicy собирает полный снапшот политики арендатора за три запроса.
func (r *PolicyRepo) GetTenantPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error) {
	t, err := r.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	p := &domain.TenantPolicy{
		TenantID:    tenantID,
		DefaultTier: t.DefaultTier,
		Overrides:   make(map[string]domain.ItemOverride),
	}

	rows, err := r.pool.Query(ctx,
		`SELECT name, grant_tag, rank FROM tiers WHERE tenant_id = $1 ORDER BY rank`, tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var td domain.TierDef
		if err := rows.Scan(&td.Name, &td.GrantTag, &td.Rank); err != nil {
			rows.Close()
			return nil, err
		}
		p.Tiers = append(p.Tiers, td)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT collection_id, tier_name FROM collection_rules WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var cr domain.CollectionRule
		if err := rows.Scan(&cr.CollectionID, &cr.TierName); err != nil {
			rows.Close()
			return nil, err
		}
		p.Rules = append(p.Rules, cr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT item_id, tier_name, COALESCE(message, ''), updated_at
		 FROM item_overrides WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		o := domain.ItemOverride{TenantID: tenantID}
		if err := rows.Scan(&o.ItemID, &o.TierName, &o.Message, &o.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		p.Overrides[o.ItemID] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

// ReplaceTenantPolicy атомарно подменяет ступени и правила арендатора.
// Override'ы живут своей жизнью и здесь не трогаются.
func (r *PolicyRepo) ReplaceTenantPolicy(ctx context.Context, p *domain.TenantPolicy) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE tenants SET default_tier = $1 WHERE id = $2`, p.DefaultTier, p.TenantID); err != nil {
		return fmt.Errorf("postgres: update default tier: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tiers WHERE tenant_id = $1`, p.TenantID); err != nil {
		return err
	}
	for _, t := range p.Tiers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tiers (tenant_id, name, grant_tag, rank) VALUES ($1, $2, $3, $4)`,
			p.TenantID, t.Name, t.GrantTag, t.Rank); err != nil {
			return fmt.Errorf("postgres: insert tier %s: %w", t.Name, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM collection_rules WHERE tenant_id = $1`, p.TenantID); err != nil {
		return err
	}
	for _, cr := range p.Rules {
		if _, err := tx.Exec(ctx,
			`INSERT INTO collection_rules (tenant_id, collection_id, tier_name) VALUES ($1, $2, $3)`,
			p.TenantID, cr.CollectionID, cr.TierName); err != nil {
			return fmt.Errorf("postgres: insert rule %s: %w", cr.CollectionID, err)
		}
	}

	return tx.Commit(ctx)
}

// UpsertOverride создает или обновляет override идемпотентно:
// повторный PUT с другим значением оставляет ровно одну запись с последним значением.
func (r *PolicyRepo) UpsertOverride(ctx context.Context, o *domain.ItemOverride) error {
	query := `
		INSERT INTO item_overrides (tenant_id, item_id, tier_name, message, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
		ON CONFLICT (tenant_id, item_id)
		DO UPDATE SET tier_name = EXCLUDED.tier_name, message = EXCLUDED.message, updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, o.TenantID, o.ItemID, o.TierName, o.Message)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert override: %w", err)
	}
	return nil
}

// DeleteOverride удаляет override по (tenant, item).
func (r *PolicyRepo) DeleteOverride(ctx context.Context, tenantID, itemID string) error {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM item_overrides WHERE tenant_id = $1 AND item_id = $2`, tenantID, itemID)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete override: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: override not found")
	}
	return nil
}

// ListOverrides возвращает все override'ы арендатора для консоли.
func (r *PolicyRepo) ListOverrides(ctx context.Context, tenantID string) ([]domain.ItemOverride, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_id, tier_name, COALESCE(message, ''), updated_at
		 FROM item_overrides WHERE tenant_id = $1 ORDER BY item_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ItemOverride
	for rows.Next() {
		o := domain.ItemOverride{TenantID: tenantID}
		if err := rows.Scan(&o.ItemID, &o.TierName, &o.Message, &o.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

func (r *PolicyRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, role, scopes, created_at, updated_at
		FROM users WHERE username = $1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Scopes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
