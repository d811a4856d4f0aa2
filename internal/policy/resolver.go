package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/Salon-Boss/malia-pro-access/internal/catalog"
	"github.com/Salon-Boss/malia-pro-access/internal/domain"
)

// FactSource — то, что резолверу нужно от кэша каталога.
type FactSource interface {
	Get(ctx context.Context, tenantID, itemID string) (domain.CatalogFact, error)
}

// Resolver вычисляет требуемую ступень доступа для одного товара.
// Порядок разрешения строго фиксирован (первое совпадение побеждает):
//  1. Явный ItemOverride.
//  2. Самая строгая ступень среди правил коллекций, в которые входит товар.
//  3. Дефолтная ступень арендатора.
type Resolver struct {
	store *Store
	facts FactSource
}

func NewResolver(store *Store, facts FactSource) *Resolver {
	return &Resolver{store: store, facts: facts}
}

// RequiredTier возвращает требование для (tenant, item).
// Ошибки каталога не глотаются: вызывающий обязан трактовать их как deny.
func (r *Resolver) RequiredTier(ctx context.Context, tenantID, itemID string) (domain.Requirement, error) {
	pol, err := r.store.Get(tenantID)
	if err != nil {
		return domain.Requirement{}, err
	}

	// 1. Персональный override товара — безусловный приоритет
	if o, ok := pol.Overrides[itemID]; ok {
		return domain.Requirement{
			Tier:    o.TierName,
			Source:  domain.SourceOverride,
			Message: o.Message,
		}, nil
	}

	// 2. Членство в коллекциях. Неподтверждаемый товар не продаем.
	fact, err := r.facts.Get(ctx, tenantID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return domain.Requirement{}, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
		default:
			return domain.Requirement{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}

	member := make(map[string]struct{}, len(fact.CollectionIDs))
	for _, cid := range fact.CollectionIDs {
		member[cid] = struct{}{}
	}

	// Товар может входить в несколько коллекций с разными правилами —
	// побеждает самая строгая (наибольший ранг)
	bestTier := ""
	bestRank := 0
	for _, rule := range pol.Rules {
		if _, ok := member[rule.CollectionID]; !ok {
			continue
		}
		rank, err := pol.TierRank(rule.TierName)
		if err != nil {
			// Правило ссылается на несуществующую ступень — дефект конфигурации
			return domain.Requirement{}, fmt.Errorf("%w: %v", ErrMisconfigured, err)
		}
		if bestTier == "" || rank > bestRank {
			bestTier, bestRank = rule.TierName, rank
		}
	}
	if bestTier != "" {
		return domain.Requirement{Tier: bestTier, Source: domain.SourceCollection}, nil
	}

	// 3. Ничего не совпало — дефолт арендатора
	return domain.Requirement{Tier: pol.DefaultTier, Source: domain.SourceDefault}, nil
}
