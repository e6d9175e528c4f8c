package billing

import (
	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/user"
)

// NewServiceMock returns a Service which sends its notifications synchronously.
func NewServiceMock(db core.DB, repo Repository, playerSvc player.Service, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger) Service {
	return NewSyncService(db, repo, playerSvc, usrSvc, mailSvc, logger)
}
