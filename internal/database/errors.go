package database

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeForeignKeyViolation  pq.ErrorCode = "23503"
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeLockNotAvailable     pq.ErrorCode = "55P03"
)

// Constraint names from the migrations that map onto domain errors.
const (
	ConstraintOrderNumber      = "orders_order_number_key"
	ConstraintDealerEmail      = "dealers_email_key"
	ConstraintInventoryDealer  = "inventory_dealer_id_fkey"
	ConstraintInventoryProduct = "inventory_product_id_fkey"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrDealerNotFound       = errors.New("dealer not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrDuplicateDealerEmail = errors.New("dealer email already exists")
	ErrReservedExceedsStock = errors.New("quantity below reserved stock")
	ErrInvalidTransition    = errors.New("order status transition not allowed")
)

func pgError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return nil, false
	}
	return pqErr, true
}

// IsRetryable reports whether re-running the whole transaction may succeed:
// serialization failures, deadlocks and lock timeouts.
func IsRetryable(err error) bool {
	pqErr, ok := pgError(err)
	if !ok {
		return false
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	return violates(err, codeUniqueViolation, constraint)
}

// IsForeignKeyViolation is IsUniqueViolation for foreign keys.
func IsForeignKeyViolation(err error, constraint string) bool {
	return violates(err, codeForeignKeyViolation, constraint)
}

func violates(err error, code pq.ErrorCode, constraint string) bool {
	pqErr, ok := pgError(err)
	if !ok || pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
