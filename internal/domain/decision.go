package domain

import "time"

// Verdict — итог проверки доступа к покупке.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
)

// Reason — машиночитаемый код причины решения. Пишется в аудит и отдается клиенту.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonInsufficientTier Reason = "insufficient_tier"
	ReasonNotFound         Reason = "not_found"     // Товар не удалось подтвердить в каталоге
	ReasonUnavailable      Reason = "unavailable"   // Каталог недоступен — fail closed
	ReasonMisconfigured    Reason = "misconfigured" // Политика арендатора битая — тоже fail closed
)

// RequirementSource показывает, откуда взялось требование ступени.
type RequirementSource string

const (
	SourceOverride   RequirementSource = "override"
	SourceCollection RequirementSource = "collection"
	SourceDefault    RequirementSource = "default"
)

// Requirement — результат резолвера для одного товара.
type Requirement struct {
	Tier    string            `json:"tier"`
	Source  RequirementSource `json:"source"`
	Message string            `json:"message,omitempty"` // Кастомный текст отказа из override
}

// AccessDecision — неизменяемая запись одного решения.
// Создается на каждый вызов и один раз пишется в аудит, никогда не мутирует.
type AccessDecision struct {
	ID         string    `json:"id"`       // UUID решения
	TraceID    string    `json:"trace_id"` // Сквозной ID запроса (у batch общий)
	TenantID   string    `json:"tenant_id"`
	ItemID     string    `json:"item_id"`
	CustomerID string    `json:"customer_id,omitempty"` // Пусто для анонимов
	Verdict    Verdict   `json:"verdict"`
	Required   string    `json:"required_tier"`
	Held       string    `json:"held_tier"`
	Reason     Reason    `json:"reason"`
	Message    string    `json:"message,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Allowed — true только для явного allow. Zero value (пустой вердикт) трактуем как deny.
func (d *AccessDecision) Allowed() bool {
	return d != nil && d.Verdict == VerdictAllow
}

// BatchDecision — агрегированный итог проверки корзины.
type BatchDecision struct {
	TenantID string           `json:"tenant_id"`
	Allowed  bool             `json:"allowed"` // AND по всем позициям
	PerItem  []AccessDecision `json:"per_item"`
}

// DeniedItems возвращает только отклоненные позиции,
// чтобы вызывающая сторона убрала именно их, а не всю корзину.
func (b *BatchDecision) DeniedItems() []AccessDecision {
	var denied []AccessDecision
	for _, d := range b.PerItem {
		if d.Verdict == VerdictDeny {
			denied = append(denied, d)
		}
	}
	return denied
}

// ReasonCount — строка агрегата аналитики по коду причины.
type ReasonCount struct {
	Reason Reason `json:"reason"`
	Count  int64  `json:"count"`
}
