package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "malia"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanPolicyUpdate — широковещательный сигнал "tenant_id:refresh".
	// Все инстансы шлюза перечитывают политику арендатора из БД.
	RedisChanPolicyUpdate = RedisNamespace + ":policy:update"

	// RedisChanCatalogInvalidate — уведомления об изменении каталога.
	// Payload — JSON domain.ChangeEvent. Применяется до следующего чтения кэша.
	RedisChanCatalogInvalidate = RedisNamespace + ":catalog:invalidate"
)
