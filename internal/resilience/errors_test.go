package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("bucket overloaded"), 503)
	assert.True(t, IsTransient(err))
	assert.Equal(t, "bucket overloaded", err.Error())
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	assert.True(t, IsTransient(fmt.Errorf("publish: %w", inner)))
	assert.True(t, IsTransient(eris.Wrap(inner, "gcs: put")))
}

func TestIsTransient_NilError(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_RegularError(t *testing.T) {
	assert.False(t, IsTransient(errors.New("report: summary returned no rows")))
}

func TestIsTransient_Deadline(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(context.Canceled))
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)))
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	assert.True(t, IsTransient(err))
}

func TestIsTransient_PgError(t *testing.T) {
	undefinedColumn := &pgconn.PgError{Code: "42703", Message: `column "FLOORPLAN_FLAG" does not exist`}
	assert.False(t, IsTransient(eris.Wrap(undefinedColumn, "postgres: query")))

	connFailure := &pgconn.PgError{Code: "08006", Message: "connection failure"}
	assert.True(t, IsTransient(eris.Wrap(connFailure, "postgres: query")))
}

func TestIsTransientSQLState(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"40001", true},
		{"40P01", true},
		{"57P01", true},
		{"08000", true},
		{"53300", true},
		{"42703", false},
		{"42P01", false},
		{"22012", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientSQLState(tt.code))
		})
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"database is locked (5) (SQLITE_BUSY)",
	}
	for _, p := range patterns {
		assert.True(t, IsTransient(errors.New(p)), p)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "HTTP %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 412} {
		assert.False(t, IsTransientHTTPStatus(code), "HTTP %d", code)
	}
}
