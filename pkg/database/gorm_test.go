package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		unique bool
		fk     bool
	}{
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, unique: true},
		{name: "wrapped pg unique", err: fmt.Errorf("insert chunk: %w", &pgconn.PgError{Code: "23505"}), unique: true},
		{name: "gorm duplicated key", err: gorm.ErrDuplicatedKey, unique: true},
		{name: "pg foreign key", err: &pgconn.PgError{Code: "23503"}, fk: true},
		{name: "other", err: errors.New("connection refused")},
		{name: "nil", err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			assert.Equal(t, tt.fk, IsForeignKeyViolation(tt.err))
		})
	}
}
