package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/dbx"
	"github.com/shareguard/shareguard/internal/logging"
	"github.com/shareguard/shareguard/internal/server/auth"
	"github.com/shareguard/shareguard/internal/server/config"
	"github.com/shareguard/shareguard/internal/server/models"
	"github.com/shareguard/shareguard/internal/server/repositories/repomanager"
)

// makeGuestPassword is a seam for tests that need a deterministic password.
var makeGuestPassword = auth.GeneratePassword

// ShareService manages share grants: issuing them, verifying presented
// tokens (including first-claim identity binding and guest provisioning),
// and revoking them.
//
// A grant moves through PENDING (unclaimed) to CLAIMED on the first
// successful verification, and dies by expiry or revocation. Claiming is a
// single conditional UPDATE, so two concurrent first claims cannot both
// bind; the loser re-reads and is handled like any later access attempt.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessEvaluator
	logger      logging.Logger

	minShareDuration     time.Duration
	maxShareDuration     time.Duration
	defaultShareDuration time.Duration
}

func NewShareService(db *sql.DB, repomanager repomanager.RepositoryManager, access *AccessEvaluator, cfg *config.Config, logger logging.Logger) *ShareService {
	return &ShareService{
		db:                   db,
		repomanager:          repomanager,
		access:               access,
		logger:               logger,
		minShareDuration:     cfg.MinShareDuration,
		maxShareDuration:     cfg.MaxShareDuration,
		defaultShareDuration: cfg.DefaultShareDuration,
	}
}

// Create issues a new share grant for fileID to the recipient email. Only
// the file owner (or an admin) may share. Zero duration selects the
// configured default; anything outside the configured bounds is rejected.
// The returned grant carries the access token to hand to the recipient.
func (s *ShareService) Create(ctx context.Context, actor *models.User, fileID, email string, permission models.SharePermission, duration time.Duration) (*models.ShareGrant, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: recipient email is invalid", common.ErrorValidation)
	}
	if strings.EqualFold(email, actor.Email) {
		return nil, fmt.Errorf("%w: cannot share a file with yourself", common.ErrorValidation)
	}
	if !permission.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", common.ErrorValidation, permission)
	}

	if duration == 0 {
		duration = s.defaultShareDuration
	}
	if duration < s.minShareDuration || duration > s.maxShareDuration {
		return nil, fmt.Errorf("%w: share duration must be between %v and %v",
			common.ErrorValidation, s.minShareDuration, s.maxShareDuration)
	}

	fileRepo := s.repomanager.Files(s.db)
	file, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading file: %w", err)
	}

	perm, err := s.access.EffectivePermission(ctx, actor, file)
	if err != nil {
		return nil, err
	}
	if !perm.CanManage() {
		return nil, common.ErrorUnauthorized
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		s.logger.Error(ctx, "access token generation failed", "error", err)
		return nil, common.ErrorInternal
	}

	grant := &models.ShareGrant{
		ID:              uuid.NewString(),
		FileID:          file.ID,
		CreatedBy:       actor.ID,
		SharedWithEmail: email,
		Permission:      permission,
		AccessToken:     token,
		ExpiresAt:       time.Now().Add(duration),
	}

	repo := s.repomanager.Shares(s.db)
	if err := repo.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("error creating share grant: %w", err)
	}

	s.logger.Info(ctx, "share grant created",
		"grant_id", grant.ID, "file_id", file.ID, "permission", string(permission))
	return grant, nil
}

// VerifyResult is the outcome of a successful share verification.
//
// GuestPassword is set only when this verification provisioned a new guest
// account; it is the single disclosure of that credential and is never
// recoverable afterwards.
type VerifyResult struct {
	FileID        string
	Permission    models.SharePermission
	User          *models.User
	GuestCreated  bool
	GuestPassword string
}

// Verify checks a presented access token and recipient email against the
// grant and binds the grant to an account on first use.
//
// A token that does not exist and a token whose grant has expired are both
// reported as ErrShareNotFound, so callers cannot probe which tokens were
// ever issued. An email that does not match the recorded recipient yields
// ErrEmailMismatch without revealing the recorded address.
//
// On the first claim the recipient's account is resolved by email; if none
// exists, a guest account is provisioned inside the same transaction that
// binds the grant. Later verifications succeed only for the bound account.
func (s *ShareService) Verify(ctx context.Context, token, email string) (*VerifyResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	repo := s.repomanager.Shares(s.db)
	grant, err := repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrShareNotFound
		}
		return nil, fmt.Errorf("error loading share grant: %w", err)
	}

	now := time.Now()
	if !grant.Live(now) {
		return nil, common.ErrShareNotFound
	}
	if email != grant.SharedWithEmail {
		return nil, common.ErrEmailMismatch
	}

	if grant.Claimed() {
		return s.verifyClaimed(ctx, grant, email)
	}
	return s.claim(ctx, grant, email, now)
}

// verifyClaimed handles grants already bound to an account: access is
// granted iff the presented email resolves to the bound account.
func (s *ShareService) verifyClaimed(ctx context.Context, grant *models.ShareGrant, email string) (*VerifyResult, error) {
	userRepo := s.repomanager.Users(s.db)
	user, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// The email matched at claim time but the account is gone.
			return nil, common.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("error resolving recipient: %w", err)
	}
	if user.ID != grant.SharedWith {
		return nil, common.ErrAlreadyClaimed
	}
	return &VerifyResult{FileID: grant.FileID, Permission: grant.Permission, User: user}, nil
}

// claim performs the first-use identity binding. Guest provisioning and the
// conditional claim update share one transaction, so a racing duplicate
// cannot commit a guest without also winning the claim.
func (s *ShareService) claim(ctx context.Context, grant *models.ShareGrant, email string, now time.Time) (*VerifyResult, error) {
	var result *VerifyResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)

		user, err := userRepo.GetByEmail(ctx, email)
		guestPassword := ""
		guestCreated := false
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("error resolving recipient: %w", err)
			}
			user, guestPassword, err = s.provisionGuest(ctx, tx, email)
			if err != nil {
				return err
			}
			guestCreated = true
		}

		shareRepo := s.repomanager.Shares(tx)
		won, err := shareRepo.Claim(ctx, grant.ID, user.ID, now)
		if err != nil {
			return fmt.Errorf("error claiming share grant: %w", err)
		}
		if !won {
			// Lost the race or the grant just died; roll back any guest
			// created above and let the caller re-read.
			return errClaimLost
		}

		result = &VerifyResult{
			FileID:        grant.FileID,
			Permission:    grant.Permission,
			User:          user,
			GuestCreated:  guestCreated,
			GuestPassword: guestPassword,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return s.reverifyAfterLostClaim(ctx, grant.ID, email, now)
		}
		return nil, err
	}

	if result.GuestCreated {
		s.logger.Info(ctx, "guest account provisioned", "user_id", result.User.ID, "grant_id", grant.ID)
	}
	s.logger.Info(ctx, "share grant claimed", "grant_id", grant.ID, "user_id", result.User.ID)
	return result, nil
}

// errClaimLost aborts the claim transaction when the conditional update
// binds zero rows.
var errClaimLost = errors.New("claim update bound no rows")

// reverifyAfterLostClaim re-reads the grant after a lost claim race and
// resolves the outcome: either the grant expired meanwhile, or someone else
// bound it first.
func (s *ShareService) reverifyAfterLostClaim(ctx context.Context, grantID, email string, now time.Time) (*VerifyResult, error) {
	repo := s.repomanager.Shares(s.db)
	grant, err := repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrShareNotFound
		}
		return nil, fmt.Errorf("error re-reading share grant: %w", err)
	}
	if !grant.Live(now) {
		return nil, common.ErrShareNotFound
	}
	if !grant.Claimed() {
		// Unclaimed yet live: the concurrent winner rolled back. Treat as
		// a conflict rather than retrying indefinitely.
		return nil, common.ErrAlreadyClaimed
	}
	return s.verifyClaimed(ctx, grant, email)
}

// provisionGuest creates a guest account for email inside the claim
// transaction. The username is derived from the email local part with a
// numeric suffix on collision; the generated password is returned in plain
// text for its one and only disclosure.
func (s *ShareService) provisionGuest(ctx context.Context, tx dbx.DBTX, email string) (*models.User, string, error) {
	userRepo := s.repomanager.Users(tx)

	base := email
	if i := strings.Index(email, "@"); i > 0 {
		base = email[:i]
	}

	username := base
	for n := 1; ; n++ {
		taken, err := userRepo.UsernameExists(ctx, username)
		if err != nil {
			return nil, "", fmt.Errorf("error checking username: %w", err)
		}
		if !taken {
			break
		}
		username = fmt.Sprintf("%s%d", base, n)
	}

	password := makeGuestPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error(ctx, "guest password hashing failed", "error", err)
		return nil, "", common.ErrorInternal
	}

	user, err := userRepo.Create(ctx, &models.User{
		UserName:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleGuest,
	})
	if err != nil {
		return nil, "", fmt.Errorf("error creating guest account: %w", err)
	}
	return user, password, nil
}

// Revoke kills a grant by forcing its expiry to now. Only the grant creator
// or an admin may revoke. Revoking a grant that is already expired or
// revoked is a no-op success, so retries are safe.
func (s *ShareService) Revoke(ctx context.Context, actor *models.User, grantID string) error {
	if actor == nil {
		return common.ErrorUnauthorized
	}

	repo := s.repomanager.Shares(s.db)
	grant, err := repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error loading share grant: %w", err)
	}

	if grant.CreatedBy != actor.ID && !models.IsAdmin(actor) {
		return common.ErrorUnauthorized
	}

	if err := repo.Expire(ctx, grantID, time.Now()); err != nil {
		return fmt.Errorf("error revoking share grant: %w", err)
	}

	s.logger.Info(ctx, "share grant revoked", "grant_id", grantID)
	return nil
}

// ListForActor returns the grants the actor issued or holds, newest first.
// Admins see every grant.
func (s *ShareService) ListForActor(ctx context.Context, actor *models.User) ([]*models.ShareGrant, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}
	repo := s.repomanager.Shares(s.db)
	if models.IsAdmin(actor) {
		return repo.ListAll(ctx)
	}
	return repo.ListForActor(ctx, actor.ID)
}
