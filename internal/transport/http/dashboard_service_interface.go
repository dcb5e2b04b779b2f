package http

import (
	"context"
	"io"

	"tenderdash/internal/services"
	"tenderdash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dataset operations the handlers need
type DashboardServiceInterface interface {
	Stats(ctx context.Context) (*services.Dataset, error)
	Load(ctx context.Context) (services.LoadResult, error)
	CityTenders(ctx context.Context, city string) (services.CityTendersResult, error)
	DeveloperTenders(ctx context.Context, name string) (services.DeveloperTendersResult, error)
	FilterOptions(ctx context.Context) (domain.FilterOptions, error)
	ApplyFilters(ctx context.Context, f domain.FilterState) (services.FilterResult, error)
	Export(ctx context.Context, w io.Writer) error
}
