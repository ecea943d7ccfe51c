package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/service/intake"
)

// CaseRepo implements intake.Repository against PostgreSQL.
type CaseRepo struct{ db *sql.DB }

// NewCaseRepo creates a Postgres-backed case repository.
func NewCaseRepo(db *sql.DB) *CaseRepo { return &CaseRepo{db: db} }

// caseColumns is the full select list, shared by every case query so the
// scan order can never drift between them.
const caseColumns = `
	case_id, message_id, thread_id, idempotency_key,
	from_email, subject, body, received_at,
	direction, scope, plan, coverage_limit, start_date, end_date, days, sports_coverage,
	premium_base, premium_age_load, premium_sports_load, premium_subtotal,
	premium_group_discount, premium_net, premium_tax, premium_fees, premium_total, currency,
	route, missing_fields, intent_ok,
	email_storage_url, attachments_storage_urls, policy_pdf_url, audit_json_url,
	kb_version, trace_id, latency_ms, created_at, updated_at`

// SaveCase inserts the case and its travellers in one transaction. The case
// arrives fully decided; nothing here mutates it.
func (r *CaseRepo) SaveCase(ctx context.Context, c *domain.Case, travellers []domain.Traveller) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	missingJSON, err := marshalStrings(c.MissingFields)
	if err != nil {
		return fmt.Errorf("marshal missing_fields: %w", err)
	}
	attachJSON, err := marshalStrings(c.AttachmentsStorageURLs)
	if err != nil {
		return fmt.Errorf("marshal attachments_storage_urls: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (
			case_id, message_id, thread_id, idempotency_key,
			from_email, subject, body, received_at,
			direction, scope, plan, coverage_limit, start_date, end_date, days, sports_coverage,
			premium_base, premium_age_load, premium_sports_load, premium_subtotal,
			premium_group_discount, premium_net, premium_tax, premium_fees, premium_total, currency,
			route, missing_fields, intent_ok,
			email_storage_url, attachments_storage_urls, policy_pdf_url, audit_json_url,
			kb_version, trace_id, latency_ms, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26,
			$27, $28, $29,
			$30, $31, $32, $33,
			$34, $35, $36, NOW(), NOW()
		)
	`,
		c.CaseID, c.MessageID, c.ThreadID, c.IdempotencyKey,
		c.FromEmail, c.Subject, c.Body, c.ReceivedAt,
		c.Direction, c.Scope, c.Plan, c.CoverageLimit, c.StartDate, c.EndDate, c.Days, c.SportsCoverage,
		c.PremiumBase, c.PremiumAgeLoad, c.PremiumSportsLoad, c.PremiumSubtotal,
		c.PremiumGroupDiscount, c.PremiumNet, c.PremiumTax, c.PremiumFees, c.PremiumTotal, c.Currency,
		c.Route, missingJSON, c.IntentOK,
		c.EmailStorageURL, attachJSON, c.PolicyPDFURL, c.AuditJSONURL,
		c.KBVersion, c.TraceID, c.LatencyMS,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return intake.ErrDuplicateCase
		}
		return fmt.Errorf("insert case: %w", err)
	}

	for i := range travellers {
		t := &travellers[i]
		mrzJSON := string(t.MRZData)
		if mrzJSON == "" {
			mrzJSON = "null"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO travellers (
				case_id, full_name, passport_number, date_of_birth,
				age_at_travel, is_senior, mrz_data
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.CaseID, t.FullName, t.PassportNumber, t.DateOfBirth,
			t.AgeAtTravel, t.IsSenior, mrzJSON)
		if err != nil {
			return fmt.Errorf("insert traveller: %w", err)
		}
	}

	return tx.Commit()
}

func (r *CaseRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Case, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE idempotency_key = $1`, key)
	return scanCase(row)
}

func (r *CaseRepo) GetByID(ctx context.Context, caseID string) (*domain.Case, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE case_id = $1`, caseID)
	return scanCase(row)
}

func (r *CaseRepo) ListTravellers(ctx context.Context, caseID string) ([]domain.Traveller, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, case_id, full_name, passport_number, date_of_birth,
		       age_at_travel, is_senior, mrz_data
		FROM travellers
		WHERE case_id = $1
		ORDER BY id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list travellers: %w", err)
	}
	defer rows.Close()

	var out []domain.Traveller
	for rows.Next() {
		var t domain.Traveller
		var dob sql.NullTime
		var age sql.NullInt64
		var mrz []byte
		if err := rows.Scan(&t.ID, &t.CaseID, &t.FullName, &t.PassportNumber,
			&dob, &age, &t.IsSenior, &mrz); err != nil {
			return nil, fmt.Errorf("scan traveller: %w", err)
		}
		if dob.Valid {
			d := dob.Time
			t.DateOfBirth = &d
		}
		if age.Valid {
			a := int(age.Int64)
			t.AgeAtTravel = &a
		}
		t.MRZData = mrz
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CaseRepo) List(ctx context.Context, f intake.ListFilter) ([]domain.Case, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM cases`
	var args []interface{}
	if f.Route != "" {
		countQ += ` WHERE route = $1`
		args = append(args, f.Route)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	q := `SELECT ` + caseColumns + ` FROM cases`
	qArgs := []interface{}{}
	idx := 1
	if f.Route != "" {
		q += fmt.Sprintf(` WHERE route = $%d`, idx)
		qArgs = append(qArgs, f.Route)
		idx++
	}
	q += fmt.Sprintf(` ORDER BY received_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CaseRepo) RouteStats(ctx context.Context) (map[domain.Route]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT route, COUNT(*) FROM cases GROUP BY route`)
	if err != nil {
		return nil, fmt.Errorf("route stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.Route]int)
	for rows.Next() {
		var route string
		var n int
		if err := rows.Scan(&route, &n); err != nil {
			return nil, fmt.Errorf("scan route stats: %w", err)
		}
		stats[domain.Route(route)] = n
	}
	return stats, rows.Err()
}

// rowScanner lets scanCase work on both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	var direction, scope, plan sql.NullString
	var coverage, days, latency sql.NullInt64
	var startDate, endDate sql.NullTime
	var base, ageLoad, sportsLoad, subtotal, discount, net, tax, fees, total decimal.NullDecimal
	var missingJSON, attachJSON []byte
	var emailURL, pdfURL, auditURL sql.NullString

	err := row.Scan(
		&c.CaseID, &c.MessageID, &c.ThreadID, &c.IdempotencyKey,
		&c.FromEmail, &c.Subject, &c.Body, &c.ReceivedAt,
		&direction, &scope, &plan, &coverage, &startDate, &endDate, &days, &c.SportsCoverage,
		&base, &ageLoad, &sportsLoad, &subtotal,
		&discount, &net, &tax, &fees, &total, &c.Currency,
		&c.Route, &missingJSON, &c.IntentOK,
		&emailURL, &attachJSON, &pdfURL, &auditURL,
		&c.KBVersion, &c.TraceID, &latency, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, intake.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}

	if direction.Valid {
		d := domain.Direction(direction.String)
		c.Direction = &d
	}
	if scope.Valid {
		s := domain.Scope(scope.String)
		c.Scope = &s
	}
	if plan.Valid {
		p := domain.Plan(plan.String)
		c.Plan = &p
	}
	if coverage.Valid {
		v := int(coverage.Int64)
		c.CoverageLimit = &v
	}
	if startDate.Valid {
		t := startDate.Time
		c.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		c.EndDate = &t
	}
	if days.Valid {
		v := int(days.Int64)
		c.Days = &v
	}
	if latency.Valid {
		v := int(latency.Int64)
		c.LatencyMS = &v
	}

	c.PremiumBase = nullDecimalPtr(base)
	c.PremiumAgeLoad = nullDecimalPtr(ageLoad)
	c.PremiumSportsLoad = nullDecimalPtr(sportsLoad)
	c.PremiumSubtotal = nullDecimalPtr(subtotal)
	c.PremiumGroupDiscount = nullDecimalPtr(discount)
	c.PremiumNet = nullDecimalPtr(net)
	c.PremiumTax = nullDecimalPtr(tax)
	c.PremiumFees = nullDecimalPtr(fees)
	c.PremiumTotal = nullDecimalPtr(total)

	if emailURL.Valid {
		c.EmailStorageURL = &emailURL.String
	}
	if pdfURL.Valid {
		c.PolicyPDFURL = &pdfURL.String
	}
	if auditURL.Valid {
		c.AuditJSONURL = &auditURL.String
	}

	if len(missingJSON) > 0 {
		if err := json.Unmarshal(missingJSON, &c.MissingFields); err != nil {
			return nil, fmt.Errorf("unmarshal missing_fields: %w", err)
		}
	}
	if len(attachJSON) > 0 {
		if err := json.Unmarshal(attachJSON, &c.AttachmentsStorageURLs); err != nil {
			return nil, fmt.Errorf("unmarshal attachments_storage_urls: %w", err)
		}
	}

	return &c, nil
}

func nullDecimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}

// marshalStrings serializes a string list for a JSONB column, mapping nil to
// an empty JSON array rather than JSON null.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		return "[]", nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure, matched on the error text the same way the driver surfaces it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
