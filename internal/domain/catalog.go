package domain

import "time"

// CatalogFact — кэшируемый факт каталога: членство товара в коллекциях и его тип.
type CatalogFact struct {
	ItemID        string    `json:"item_id"`
	CollectionIDs []string  `json:"collection_ids"`
	ProductType   string    `json:"product_type"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Collection — справочная запись коллекции апстрима.
type Collection struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Title  string `json:"title"`
}

// ChangeKind — тип уведомления об изменении каталога от апстрима.
type ChangeKind string

const (
	ChangeItemCreated       ChangeKind = "item-created"
	ChangeItemUpdated       ChangeKind = "item-updated"
	ChangeItemDeleted       ChangeKind = "item-deleted"
	ChangeCollectionUpdated ChangeKind = "collection-updated"
)

// ChangeEvent — уведомление об изменении, инвалидирующее кэш раньше TTL.
type ChangeEvent struct {
	TenantID string     `json:"tenant_id"`
	Kind     ChangeKind `json:"kind"`
	ID       string     `json:"id"` // item_id либо collection_id в зависимости от Kind
}

// Tenant — запись магазина: учетка апстрима и дефолтная ступень.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CatalogToken string    `json:"-"` // Токен апстрим-каталога; наружу не отдаем
	DefaultTier  string    `json:"default_tier"`
	CreatedAt    time.Time `json:"created_at"`
}
