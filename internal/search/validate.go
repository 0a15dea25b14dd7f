package search

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/qanoonai/backend/internal/storage/models"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// normalizeOptions validates opts and fills defaults, so that requests
// differing only in omitted defaults share a cache key.
func (s *Service) normalizeOptions(opts models.SearchOptions) (models.SearchOptions, error) {
	opts.Query = strings.Join(strings.Fields(opts.Query), " ")
	n := utf8.RuneCountInString(opts.Query)
	if n < s.cfg.MinQueryLength {
		return opts, invalid("query must be at least %d characters", s.cfg.MinQueryLength)
	}
	if n > s.cfg.MaxQueryLength {
		return opts, invalid("query must be at most %d characters", s.cfg.MaxQueryLength)
	}

	limit, offset, err := s.page(opts.Limit, opts.Offset)
	if err != nil {
		return opts, err
	}
	opts.Limit, opts.Offset = limit, offset

	filters, err := normalizeFilters(opts.Filters)
	if err != nil {
		return opts, err
	}
	opts.Filters = filters

	if opts.Weights == nil {
		w := s.cfg.DefaultWeights
		opts.Weights = &w
	} else {
		w := *opts.Weights
		for _, v := range []float64{w.Vector, w.Keyword, w.Recency} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return opts, invalid("weights must be finite and non-negative")
			}
		}
		if w.Total() == 0 {
			return opts, invalid("at least one weight must be positive")
		}
		opts.Weights = &w
	}
	return opts, nil
}

func (s *Service) page(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < 0 || limit > s.cfg.MaxLimit {
		return 0, 0, invalid("limit must be between 1 and %d", s.cfg.MaxLimit)
	}
	if offset < 0 {
		return 0, 0, invalid("offset must not be negative")
	}
	return limit, offset, nil
}

func normalizeFilters(f *models.SearchFilters) (*models.SearchFilters, error) {
	out := &models.SearchFilters{}
	if f == nil {
		return out, nil
	}

	for _, t := range f.CourtTiers {
		tier, err := models.ParseCourtTier(string(t))
		if err != nil {
			return nil, invalid("%v", err)
		}
		out.CourtTiers = append(out.CourtTiers, tier)
	}
	for _, j := range f.Jurisdictions {
		jur, err := models.ParseJurisdiction(string(j))
		if err != nil {
			return nil, invalid("%v", err)
		}
		out.Jurisdictions = append(out.Jurisdictions, jur)
	}
	if y := f.Years; y != nil {
		if y.From < 0 || y.To < 0 {
			return nil, invalid("years must not be negative")
		}
		if y.From > 0 && y.To > 0 && y.From > y.To {
			return nil, invalid("year range %d-%d is inverted", y.From, y.To)
		}
		if y.From > 0 || y.To > 0 {
			out.Years = &models.YearRange{From: y.From, To: y.To}
		}
	}
	for _, area := range f.LegalAreas {
		if area = strings.ToLower(strings.TrimSpace(area)); area != "" {
			out.LegalAreas = append(out.LegalAreas, area)
		}
	}
	out.Court = strings.TrimSpace(f.Court)
	return out, nil
}
