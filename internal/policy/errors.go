package policy

import "errors"

// Таксономия ошибок движка решений. Все четыре транслируются в deny (fail closed),
// но с разными кодами причин — аудит должен различать, почему именно отказали.
var (
	ErrItemNotFound       = errors.New("policy: item not found in catalog")
	ErrCatalogUnavailable = errors.New("policy: catalog unavailable")
	ErrTenantUnknown      = errors.New("policy: tenant has no policy loaded")
	ErrMisconfigured      = errors.New("policy: tenant policy misconfigured")
)
