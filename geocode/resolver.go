package geocode

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/metrics"
)

// DefaultAreaName is returned whenever no name can be found.
const DefaultAreaName = "Local Area"

// Reverser is the remote lookup used by Resolver.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
}

// Resolver turns coordinates into a display name. It never fails: every
// problem degrades to the default name.
type Resolver struct {
	client      Reverser
	cache       *LocationCache
	timeout     time.Duration
	defaultName string
	logger      zerolog.Logger
}

type ResolverOption func(*Resolver)

// WithTimeout bounds one Resolve call, retries included.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

func WithDefaultName(name string) ResolverOption {
	return func(r *Resolver) { r.defaultName = name }
}

func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver. cache may be nil to disable caching.
func NewResolver(client Reverser, cache *LocationCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:      client,
		cache:       cache,
		timeout:     DefaultTimeout,
		defaultName: DefaultAreaName,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the area name for ll. Only names found remotely are
// cached, so a failed lookup is tried again next time.
func (r *Resolver) Resolve(ctx context.Context, ll geo.LatLng) string {
	if r.cache != nil {
		if name, ok := r.cache.Lookup(ll); ok {
			metrics.GeocodingRequestsTotal.WithLabelValues("cache").Inc()
			r.logger.Debug().Str("area", name).Msg("area name from cache")
			return name
		}
	}

	name, ok := r.lookup(ctx, ll)
	if !ok {
		metrics.GeocodingRequestsTotal.WithLabelValues("default").Inc()
		return r.defaultName
	}
	metrics.GeocodingRequestsTotal.WithLabelValues("nominatim").Inc()

	if r.cache != nil {
		if err := r.cache.Store(ll, name); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache area name")
		}
	}
	return name
}

func (r *Resolver) lookup(ctx context.Context, ll geo.LatLng) (string, bool) {
	if r.client == nil {
		return "", false
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.client.Reverse(ctx, ll.Lat, ll.Lng)
	if err != nil {
		r.logger.Warn().Err(err).Float64("lat", ll.Lat).Float64("lng", ll.Lng).Msg("reverse geocoding failed")
		return "", false
	}
	name, ok := result.Address.AreaName()
	if !ok {
		r.logger.Info().Str("display_name", result.DisplayName).Msg("no area name in address")
		return "", false
	}
	return name, true
}
