package ports

import "github.com/rwiren/securingskies-platform/internal/domain"

// Notifier is the push side of the outbound surface: one call per asset
// mutation, carrying a read-only copy. Implementations must not block.
type Notifier interface {
	AssetChanged(a domain.Asset)
}
