package offices

import (
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/photoref"
)

// PostgresRepository owns an office's photo through the office's creator.
type PostgresRepository struct {
	*photoref.PostgresRef
}

// NewPostgresRepository returns an offices repository bound to the provided
// DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{PostgresRef: photoref.NewPostgresRef(db, "offices", "created_by")}
}
