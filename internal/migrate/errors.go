package migrate

import (
	"errors"
	"fmt"

	"github.com/robmartinson/tablecopy/internal/database"
)

var (
	// ErrSourceTableMissing is wrapped by a QueryError when the source has no
	// table of the requested name.
	ErrSourceTableMissing = errors.New("table does not exist at source")
	// ErrDuplicateKey matches a QueryError whose insert was rejected for a
	// primary or unique key collision.
	ErrDuplicateKey = errors.New("duplicate key")
)

// QueryError is a per-table failure of a statement against either store.
type QueryError struct {
	Table string
	Op    string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDuplicateKey) work for any driver.
func (e *QueryError) Is(target error) bool {
	return target == ErrDuplicateKey && database.IsDuplicateKey(e.Err)
}

// DestinationMissingError reports that the destination has no table to load
// into. It is not a failure: the table is skipped.
type DestinationMissingError struct {
	Table string
}

func (e *DestinationMissingError) Error() string {
	return fmt.Sprintf("table %s does not exist at destination", e.Table)
}

// connectionError converts lazily discovered connection loss into a
// *database.ConnectionError for role. Other errors are returned unchanged.
func connectionError(role database.Role, err error) error {
	if err == nil || !database.IsConnectionLoss(err) {
		return err
	}
	var connErr *database.ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	return &database.ConnectionError{Role: role, Err: err}
}
