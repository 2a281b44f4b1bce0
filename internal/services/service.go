// Package services contains the domain access functions.
// Services are called by handlers and interact with the record store.
package services

import (
	"errors"
	"time"

	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/store"
	"go.uber.org/zap"
)

var (
	ErrForbidden         = errors.New("not permitted for the signed-in user")
	ErrRoleMismatch      = errors.New("role mismatch")
	ErrInactive          = errors.New("account is deactivated")
	ErrNotVerified       = errors.New("record is not verified on the blockchain yet")
	ErrAlreadyDispensed  = errors.New("prescription already dispensed")
	ErrExpired           = errors.New("prescription has expired")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// Deps bundles what every domain service needs
type Deps struct {
	Store  store.RecordStore
	IDs    ident.Generator
	Now    func() time.Time
	Logger *zap.SugaredLogger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) newID(prefix string) string {
	if d.IDs == nil {
		return ident.UUIDGenerator{}.NewID(prefix)
	}
	return d.IDs.NewID(prefix)
}
