// Package api exposes the HTTP surface of the intake service: the webhook
// endpoints the n8n orchestrator posts to, a read-only case API for
// operators, and health probes. Handlers translate between wire payloads
// and the intake/issuance services; routing rules live in the services.
package api
