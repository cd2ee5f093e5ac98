package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

// StreetUseCase reports on street transits
type StreetUseCase struct {
	opener repository.Opener
	log    logrus.FieldLogger
}

// NewStreetUseCase creates a new street use case
func NewStreetUseCase(opener repository.Opener, log logrus.FieldLogger) *StreetUseCase {
	return &StreetUseCase{opener: opener, log: log}
}

// Transits returns the latest transit per map point in rng, limited to zone when given
func (uc *StreetUseCase) Transits(ctx context.Context, zone string, rng timerange.Range) (*table.Table, error) {
	uc.log.Debugf("Fetching transits for zone %q", zone)

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	transits, err := local.Streets.LatestTransits(ctx, zone, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transits: %w", err)
	}
	uc.log.Infof("Successfully fetched %d transits", len(transits))
	return TransitsTable(transits), nil
}

// Catalog returns every street zone with its macro
func (uc *StreetUseCase) Catalog(ctx context.Context) ([]entities.StreetCatalogEntry, error) {
	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	entries, err := local.Streets.StreetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch street catalog: %w", err)
	}
	return entries, nil
}

// Streets returns the sorted unique street names of the catalog
func (uc *StreetUseCase) Streets(ctx context.Context) ([]string, error) {
	entries, err := uc.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return StreetNames(entries), nil
}

// StreetNames returns the sorted unique, non-empty street names of entries
func StreetNames(entries []entities.StreetCatalogEntry) []string {
	names := lo.Uniq(lo.FilterMap(entries, func(e entities.StreetCatalogEntry, _ int) (string, bool) {
		name := strings.TrimSpace(e.Street)
		return name, name != ""
	}))
	sort.Strings(names)
	return names
}
