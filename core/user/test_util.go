package user

import (
	"github.com/touchline/academy/core"
)

// NewServiceMock returns a Service which sends its emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	svc := NewService(repo, mailSvc, logger).(*service)
	svc.sendSync = true
	return svc
}
