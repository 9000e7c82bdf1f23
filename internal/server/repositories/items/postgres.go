package items

import (
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/photoref"
)

// PostgresRepository owns an item's photo through the user who reported it.
type PostgresRepository struct {
	*photoref.PostgresRef
}

// NewPostgresRepository returns a found-items repository bound to the
// provided DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{PostgresRef: photoref.NewPostgresRef(db, "found_items", "reported_by")}
}
