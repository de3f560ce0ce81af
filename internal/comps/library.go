package comps

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"deal-eval/backend/internal/store"
	"deal-eval/backend/internal/valuation"
)

// Repository is the persistence the library needs; *store.Database satisfies it.
type Repository interface {
	ReplaceComparables(rows []store.Comparable) error
	FindComparables(sector, stage, geo string, limit int) ([]store.Comparable, error)
	CountComparables() (int64, error)
}

const lookupLimit = 200

// Service manages the comparables library and peer lookup.
type Service struct {
	db      Repository
	cache   map[string][]valuation.Comparable
	cacheMu sync.RWMutex
}

func NewService(db Repository) *Service {
	return &Service{
		db:    db,
		cache: make(map[string][]valuation.Comparable),
	}
}

// LoadFromCSV ingests the provided CSV and replaces the stored library.
func (s *Service) LoadFromCSV(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("comparables path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open comparables file: %w", err)
	}
	defer file.Close()
	return s.LoadFromReader(bufio.NewReader(file))
}

// LoadFromReader parses CSV rows and replaces the stored library.
func (s *Service) LoadFromReader(r io.Reader) (int, error) {
	rows, err := Parse(r)
	if err != nil {
		return 0, err
	}
	if err := s.db.ReplaceComparables(rows); err != nil {
		return 0, fmt.Errorf("replace comparables: %w", err)
	}

	s.cacheMu.Lock()
	s.cache = make(map[string][]valuation.Comparable)
	s.cacheMu.Unlock()

	return len(rows), nil
}

// Parse reads name,sector,stage,geo,enterprise_value,revenue[,similar_size]
// rows. A header row and rows with unusable numbers are skipped.
func Parse(r io.Reader) ([]store.Comparable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []store.Comparable
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read comparables row: %w", err)
		}
		if len(row) < 6 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" || strings.EqualFold(name, "name") {
			continue
		}
		ev, ok := parseAmount(row[4])
		if !ok {
			continue
		}
		revenue, ok := parseAmount(row[5])
		if !ok {
			continue
		}
		similar := true
		if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
			parsed, err := strconv.ParseBool(strings.TrimSpace(row[6]))
			if err != nil {
				continue
			}
			similar = parsed
		}
		rows = append(rows, store.Comparable{
			Name:            name,
			Sector:          normalize(row[1]),
			Stage:           normalize(row[2]),
			Geo:             normalize(row[3]),
			EnterpriseValue: ev,
			Revenue:         revenue,
			SimilarSize:     similar,
		})
	}
	return rows, nil
}

// parseAmount accepts finite, non-negative numbers only.
func parseAmount(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// Count returns the number of stored comparables.
func (s *Service) Count() int {
	if s == nil {
		return 0
	}
	count, err := s.db.CountComparables()
	if err != nil {
		return 0
	}
	return int(count)
}

// Comparables returns the peers for a sector/stage/geo, widening to
// sector+stage and then sector alone when the narrower key has no rows.
func (s *Service) Comparables(sector, stage, geo string) ([]valuation.Comparable, error) {
	sector, stage, geo = normalize(sector), normalize(stage), normalize(geo)
	if sector == "" {
		return nil, nil
	}
	key := strings.Join([]string{sector, stage, geo}, "|")
	if cached, ok := s.lookupCache(key); ok {
		return cached, nil
	}

	searches := [][3]string{
		{sector, stage, geo},
		{sector, stage, ""},
		{sector, "", ""},
	}
	var peers []valuation.Comparable
	for _, q := range searches {
		rows, err := s.db.FindComparables(q[0], q[1], q[2], lookupLimit)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			peers = toValuation(rows)
			break
		}
	}

	s.storeCache(key, peers)
	return peers, nil
}

func toValuation(rows []store.Comparable) []valuation.Comparable {
	out := make([]valuation.Comparable, 0, len(rows))
	for _, r := range rows {
		out = append(out, valuation.Comparable{
			Name:            r.Name,
			EnterpriseValue: r.EnterpriseValue,
			Revenue:         r.Revenue,
			SimilarSize:     r.SimilarSize,
		})
	}
	return out
}

func (s *Service) lookupCache(key string) ([]valuation.Comparable, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	entry, ok := s.cache[key]
	return entry, ok
}

func (s *Service) storeCache(key string, peers []valuation.Comparable) {
	s.cacheMu.Lock()
	s.cache[key] = peers
	s.cacheMu.Unlock()
}

func normalize(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
