package pricing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripvera/travel-intake/internal/domain"
)

// Key addresses one tariff row: geographic scope, plan tier, and the
// inclusive day band.
type Key struct {
	Scope   domain.Scope
	Plan    domain.Plan
	BandMin int
	BandMax int
}

// Tariff is the priced content of one row.
type Tariff struct {
	Premium       decimal.Decimal
	Currency      string
	CoverageLimit int
}

var tariffColumns = []string{"scope", "plan", "band_min", "band_max", "premium_usd", "currency", "coverage_limit"}

// LoadTariffs reads the packaged tariff CSV. Columns are matched by header
// name, not position. The file is deploy-packaged configuration, so any
// malformed row fails the load outright.
func LoadTariffs(path string) (map[Key]Tariff, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tariff file %s: %w", path, err)
	}
	defer f.Close()
	return parseTariffs(f)
}

func parseTariffs(r io.Reader) (map[Key]Tariff, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read tariff header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range tariffColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("tariff header missing column %q", name)
		}
	}

	tariffs := make(map[Key]Tariff)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tariff row: %w", err)
		}
		line++

		field := func(name string) string { return strings.TrimSpace(rec[col[name]]) }

		bandMin, err := strconv.Atoi(field("band_min"))
		if err != nil {
			return nil, fmt.Errorf("tariff line %d: band_min: %w", line, err)
		}
		bandMax, err := strconv.Atoi(field("band_max"))
		if err != nil {
			return nil, fmt.Errorf("tariff line %d: band_max: %w", line, err)
		}
		premium, err := decimal.NewFromString(field("premium_usd"))
		if err != nil {
			return nil, fmt.Errorf("tariff line %d: premium_usd: %w", line, err)
		}
		coverage, err := strconv.Atoi(field("coverage_limit"))
		if err != nil {
			return nil, fmt.Errorf("tariff line %d: coverage_limit: %w", line, err)
		}

		key := Key{
			Scope:   domain.Scope(field("scope")),
			Plan:    domain.Plan(field("plan")),
			BandMin: bandMin,
			BandMax: bandMax,
		}
		tariffs[key] = Tariff{
			Premium:       premium,
			Currency:      field("currency"),
			CoverageLimit: coverage,
		}
	}

	if len(tariffs) == 0 {
		return nil, errors.New("tariff file has no rows")
	}
	return tariffs, nil
}
