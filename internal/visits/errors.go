package visits

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPeriod is returned when a period sets both hours and days or
	// uses a negative window.
	ErrInvalidPeriod = errors.New("invalid period: days and hours are mutually exclusive and must be positive")

	// ErrInvalidWindow is returned for non-positive minute windows or limits.
	ErrInvalidWindow = errors.New("invalid window: must be positive")
)

// StorageError reports a failed store operation (I/O, locking, schema or
// constraint errors).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
