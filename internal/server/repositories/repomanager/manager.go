package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/mfa"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Mfa(db dbx.DBTX) mfa.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
