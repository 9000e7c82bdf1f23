package dbx

import (
	"fmt"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/google/uuid"
)

// CheckID reports common.ErrorNotFound for an id that cannot exist in a
// UUID column. Repositories call it before querying so a malformed id never
// reaches the driver as a syntax error.
func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", common.ErrorNotFound, id)
	}
	return nil
}
