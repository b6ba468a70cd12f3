package repomanager

import (
	"context"
	"database/sql"

	"github.com/shareguard/shareguard/internal/dbx"
	"github.com/shareguard/shareguard/internal/server/repositories/files"
	"github.com/shareguard/shareguard/internal/server/repositories/refreshtokens"
	"github.com/shareguard/shareguard/internal/server/repositories/shares"
	"github.com/shareguard/shareguard/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can run
// several repositories inside one transaction by handing them the same tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Shares(db dbx.DBTX) shares.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
