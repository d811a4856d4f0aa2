package domain

import (
	"fmt"
	"time"
)

// TierDef — одна ступень доступа арендатора (например public < verified < butterfly_paid).
// GrantTag — тег покупателя, который выдает эту ступень.
type TierDef struct {
	Name     string `json:"name"`
	GrantTag string `json:"grant_tag"`
	Rank     int    `json:"rank"` // Позиция в строгом порядке: чем выше, тем строже
}

// CollectionRule привязывает коллекцию каталога к требуемой ступени.
type CollectionRule struct {
	CollectionID string `json:"collection_id"`
	TierName     string `json:"tier_name"`
}

// ItemOverride — явное требование ступени для конкретного товара.
// Имеет приоритет над правилами коллекций. Уникален в рамках (tenant, item).
type ItemOverride struct {
	TenantID  string    `json:"tenant_id"`
	ItemID    string    `json:"item_id"`
	TierName  string    `json:"tier_name"`
	Message   string    `json:"message,omitempty"` // Кастомный текст отказа (опционально)
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantPolicy — полный документ политики одного магазина.
// Неизменяемый снапшот: стор подменяет его целиком при обновлении.
type TenantPolicy struct {
	TenantID    string           `json:"tenant_id"`
	Tiers       []TierDef        `json:"tiers"` // Отсортированы по Rank по возрастанию
	Rules       []CollectionRule `json:"rules"`
	DefaultTier string           `json:"default_tier"`

	Overrides map[string]ItemOverride `json:"overrides,omitempty"` // item_id -> override
}

// TierRank возвращает позицию ступени в порядке арендатора.
// Неизвестное имя — дефект конфигурации (PolicyMisconfigured на уровне выше).
func (p *TenantPolicy) TierRank(name string) (int, error) {
	for _, t := range p.Tiers {
		if t.Name == name {
			return t.Rank, nil
		}
	}
	return 0, fmt.Errorf("tier %q is not defined for tenant %s", name, p.TenantID)
}

// LowestTier — самая открытая ступень (обычно public).
// Анонимные покупатели всегда классифицируются сюда.
func (p *TenantPolicy) LowestTier() string {
	if len(p.Tiers) == 0 {
		return ""
	}
	lowest := p.Tiers[0]
	for _, t := range p.Tiers[1:] {
		if t.Rank < lowest.Rank {
			lowest = t
		}
	}
	return lowest.Name
}

// Validate проверяет инварианты документа:
// строгий порядок ступеней и существование всех ссылок на ступени.
func (p *TenantPolicy) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("tenant %s: policy must define at least one tier", p.TenantID)
	}

	names := make(map[string]struct{}, len(p.Tiers))
	ranks := make(map[int]struct{}, len(p.Tiers))
	for _, t := range p.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tenant %s: tier with empty name", p.TenantID)
		}
		if _, dup := names[t.Name]; dup {
			return fmt.Errorf("tenant %s: duplicate tier name %q", p.TenantID, t.Name)
		}
		if _, dup := ranks[t.Rank]; dup {
			// Строгий total order: одинаковые ранги запрещены
			return fmt.Errorf("tenant %s: duplicate tier rank %d", p.TenantID, t.Rank)
		}
		names[t.Name] = struct{}{}
		ranks[t.Rank] = struct{}{}
	}

	if _, ok := names[p.DefaultTier]; !ok {
		return fmt.Errorf("tenant %s: default tier %q is not in the tier list", p.TenantID, p.DefaultTier)
	}
	for _, r := range p.Rules {
		if _, ok := names[r.TierName]; !ok {
			return fmt.Errorf("tenant %s: collection rule %s references unknown tier %q", p.TenantID, r.CollectionID, r.TierName)
		}
	}
	for _, o := range p.Overrides {
		if _, ok := names[o.TierName]; !ok {
			return fmt.Errorf("tenant %s: override for item %s references unknown tier %q", p.TenantID, o.ItemID, o.TierName)
		}
	}
	return nil
}
