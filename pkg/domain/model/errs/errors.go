package errs

import (
	"errors"
)

// ErrMaintenanceBusy is returned by the maintenance runner when every
// worker slot is taken and a submission has been dropped.
var ErrMaintenanceBusy = errors.New("maintenance runner is busy")
