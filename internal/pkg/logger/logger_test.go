package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactTail(t *testing.T) {
	assert.Equal(t, "AB***", RedactTail("AB1234567"))
	assert.Equal(t, "AL***", RedactTail("ALI ALHAJ"))
	assert.Equal(t, "***", RedactTail("X"))
}

func TestRedactPIIValue(t *testing.T) {
	assert.Equal(t, "jo***@example.com", redactPIIValue("from_email", "john.doe@example.com"))
	assert.Equal(t, "AB***", redactPIIValue("passport_number", "AB1234567"))
	assert.Equal(t, "AL***", redactPIIValue("traveller_name", "ALI ALHAJ"))

	// Emails embedded in generic fields are still masked.
	got := redactPIIValue("note", "reply to john.doe@example.com today")
	assert.Equal(t, "reply to jo***@example.com today", got)

	// Non-PII passes through unchanged.
	assert.Equal(t, "success", redactPIIValue("route", "success"))
}
