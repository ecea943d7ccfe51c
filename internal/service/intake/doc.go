// Package intake implements the email ingestion pipeline.
//
// The service layer owns the full decision for one inbound email: idempotency,
// intent gating, field extraction, passport MRZ parsing, pricing and routing.
// It depends on the repository interface defined in this package and should
// never import from api/.
//
// The repository implementation lives in repository/postgres/.
package intake
