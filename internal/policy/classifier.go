package policy

import "github.com/Salon-Boss/malia-pro-access/internal/domain"

// HeldTier классифицирует покупателя по его тегам.
// Чистая функция (policy, tags) -> tier: без I/O, без ошибок.
// Идем от самой строгой ступени к самой открытой и берем первую,
// чей grant-тег есть у покупателя; иначе — самая открытая ступень.
// Анонимы (пустые теги) всегда оказываются внизу.
func HeldTier(pol *domain.TenantPolicy, tags []string) string {
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	held := ""
	heldRank := 0
	for _, tier := range pol.Tiers {
		if _, ok := tagSet[tier.GrantTag]; !ok {
			continue
		}
		if held == "" || tier.Rank > heldRank {
			held, heldRank = tier.Name, tier.Rank
		}
	}
	if held == "" {
		return pol.LowestTier()
	}
	return held
}
