// Package services contains server-side business logic: encrypted file
// storage, share-grant authorization, access evaluation, and user auth.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/server/models"
	"github.com/shareguard/shareguard/internal/server/repositories/repomanager"
)

// Permission is the effective access level an actor holds on a file.
// Levels are ordered: every level includes the capabilities of the ones
// below it.
type Permission int

const (
	PermNone Permission = iota
	// PermSharedView allows reading file metadata and content preview.
	PermSharedView
	// PermSharedDownload additionally allows downloading the content.
	PermSharedDownload
	// PermOwner allows everything including delete and share management.
	PermOwner
)

func (p Permission) String() string {
	switch p {
	case PermOwner:
		return "owner"
	case PermSharedDownload:
		return "shared-download"
	case PermSharedView:
		return "shared-view"
	default:
		return "none"
	}
}

// CanView reports whether the level permits metadata reads and preview.
func (p Permission) CanView() bool { return p >= PermSharedView }

// CanDownload reports whether the level permits content download.
func (p Permission) CanDownload() bool { return p >= PermSharedDownload }

// CanManage reports whether the level permits delete and share management.
func (p Permission) CanManage() bool { return p >= PermOwner }

// AccessEvaluator computes the effective permission an actor holds on a
// file. All services gate operations through it so the visibility rules
// stay in one place.
type AccessEvaluator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAccessEvaluator(db *sql.DB, repomanager repomanager.RepositoryManager) *AccessEvaluator {
	return &AccessEvaluator{db: db, repomanager: repomanager}
}

// EffectivePermission resolves the access level actor holds on file at the
// current instant. Admins and owners hold PermOwner; otherwise a live share
// grant bound to the actor maps to its permission level; otherwise PermNone.
// A nil actor holds PermNone.
func (e *AccessEvaluator) EffectivePermission(ctx context.Context, actor *models.User, file *models.File) (Permission, error) {
	if actor == nil || file == nil {
		return PermNone, nil
	}
	if models.IsAdmin(actor) || file.OwnerID == actor.ID {
		return PermOwner, nil
	}

	repo := e.repomanager.Shares(e.db)
	grant, err := repo.FindLiveForUserAndFile(ctx, actor.ID, file.ID, time.Now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return PermNone, nil
		}
		return PermNone, fmt.Errorf("error resolving share grant: %w", err)
	}

	switch grant.Permission {
	case models.PermissionDownload:
		return PermSharedDownload, nil
	case models.PermissionView:
		return PermSharedView, nil
	default:
		return PermNone, nil
	}
}
