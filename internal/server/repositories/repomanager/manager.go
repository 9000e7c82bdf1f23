package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/items"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/offices"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code runs
// inside or outside a transaction, and applies schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Offices(db dbx.DBTX) offices.Repository
	Items(db dbx.DBTX) items.Repository
	Assets(db dbx.DBTX) assets.Repository
}
