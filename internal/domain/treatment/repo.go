package treatment

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("patient treatment not found")

type Repository interface {
	// List returns every record ordered by id.
	List(ctx context.Context) ([]*PatientTreatment, error)
	GetByID(ctx context.Context, id int) (*PatientTreatment, error)
	// GetByCodes returns the records whose treatment_code is in codes. Unknown
	// codes are absent from the result.
	GetByCodes(ctx context.Context, codes []string) ([]*PatientTreatment, error)
}
