// Package issuance simulates policy issuance against the carrier portal.
//
// There is no real carrier integration yet: the simulator renders a synthetic
// portal screenshot to disk and fabricates a policy number, which is enough
// for the n8n flow to exercise the full round trip. The service reads cases
// through the narrow CaseGetter interface so it can sit on the same
// repository as intake.
package issuance
