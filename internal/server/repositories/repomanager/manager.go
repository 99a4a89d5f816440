package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/media"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/otps"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Otps(db dbx.DBTX) otps.Repository
	Media(db dbx.DBTX) media.Repository
}
