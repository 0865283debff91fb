package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("reserve stock: %w", &pq.Error{Code: "40P01"}), true},
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
		{"domain sentinel", ErrInsufficientStock, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConstraintViolations(t *testing.T) {
	dup := fmt.Errorf("create order: %w", &pq.Error{Code: "23505", Constraint: ConstraintOrderNumber})

	assert.True(t, IsUniqueViolation(dup, ConstraintOrderNumber))
	assert.True(t, IsUniqueViolation(dup, ""))
	assert.False(t, IsUniqueViolation(dup, ConstraintDealerEmail))
	assert.False(t, IsForeignKeyViolation(dup, ""))

	fk := &pq.Error{Code: "23503", Constraint: ConstraintInventoryProduct}
	assert.True(t, IsForeignKeyViolation(fk, ConstraintInventoryProduct))
	assert.False(t, IsForeignKeyViolation(fk, ConstraintInventoryDealer))
	assert.False(t, IsUniqueViolation(ErrDealerNotFound, ""))
}
