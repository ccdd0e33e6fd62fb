package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/repos/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

type SessionRepo = archive.SessionRepo
type AuthorityVersionRepo = archive.AuthorityVersionRepo
type DerivativeRepo = archive.DerivativeRepo
type DelegationRepo = archive.DelegationRepo

// Set bundles every table repo the archive wires at startup.
type Set struct {
	Sessions          SessionRepo
	AuthorityVersions AuthorityVersionRepo
	Derivatives       DerivativeRepo
	Delegations       DelegationRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Sessions:          archive.NewSessionRepo(db, log),
		AuthorityVersions: archive.NewAuthorityVersionRepo(db, log),
		Derivatives:       archive.NewDerivativeRepo(db, log),
		Delegations:       archive.NewDelegationRepo(db, log),
	}
}
