package discovery

import (
	"context"
	"time"
)

// Resolver finds servers by robot name.
type Resolver interface {
	// Resolve returns the server announcing name. It fails with ErrNotFound
	// when nothing answers before ctx ends or the browse timeout passes.
	Resolve(ctx context.Context, name string) (Service, error)

	// Browse streams every server found until ctx ends.
	Browse(ctx context.Context) (<-chan Service, error)
}

// ResolverConfig configures resolver behavior.
type ResolverConfig struct {
	// BrowseTimeout bounds Resolve when ctx has no deadline.
	// Default: 2 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultResolverConfig returns the default resolver configuration.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}
