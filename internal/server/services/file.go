package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/keyx"
	"github.com/shareguard/shareguard/internal/logging"
	"github.com/shareguard/shareguard/internal/server/models"
	"github.com/shareguard/shareguard/internal/server/repositories/repomanager"
	"github.com/shareguard/shareguard/internal/server/storage"
)

// FileService implements encrypted file storage on top of the blob store
// and the file registry. Every file gets its own encryption key, generated
// at upload and rendered into the registry row; the blob store only ever
// sees ciphertext.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       *storage.Store
	access      *AccessEvaluator
	logger      logging.Logger
}

func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, store *storage.Store, access *AccessEvaluator, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		access:      access,
		logger:      logger,
	}
}

// UploadRequest carries the metadata and plaintext content of an upload.
// ClientKey is opaque client key material passed through unmodified; it is
// never used by the server for encryption.
type UploadRequest struct {
	OriginalName string
	MimeType     string
	ClientKey    string
	Data         []byte
}

// Upload encrypts data under a freshly generated key, writes the ciphertext
// blob, and registers the file. The registry row is the commit point: if it
// cannot be written, the blob is deleted again. Returns the created file.
func (s *FileService) Upload(ctx context.Context, actor *models.User, req *UploadRequest) (*models.File, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}
	if req.OriginalName == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}

	key, err := keyx.Generate()
	if err != nil {
		s.logger.Error(ctx, "key generation failed", "error", err)
		return nil, common.ErrorInternal
	}
	defer key.Wipe()

	storedName, err := s.store.Put(ctx, req.Data, key)
	if err != nil {
		s.logger.Error(ctx, "blob write failed", "error", err)
		return nil, common.ErrorInternal
	}

	file := &models.File{
		ID:           uuid.NewString(),
		StoredName:   storedName,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Size:         int64(len(req.Data)),
		KeyRef:       key.Render(),
		ClientKey:    req.ClientKey,
		OwnerID:      actor.ID,
	}

	repo := s.repomanager.Files(s.db)
	if err := repo.Create(ctx, file); err != nil {
		// The blob is worthless without a registry row; remove it so the
		// sweep has less to do.
		if delErr := s.store.Delete(ctx, storedName); delErr != nil {
			s.logger.Warn(ctx, "orphan blob cleanup failed", "name", storedName, "error", delErr)
		}
		return nil, fmt.Errorf("error registering file: %w", err)
	}

	return file, nil
}

// GetAuthorized looks the file up and evaluates the actor's permission in
// one step, so callers cannot forget the check. Files the actor cannot even
// view are reported as not found.
func (s *FileService) GetAuthorized(ctx context.Context, actor *models.User, fileID string) (*models.File, Permission, error) {
	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, PermNone, common.ErrorNotFound
		}
		return nil, PermNone, fmt.Errorf("error loading file: %w", err)
	}

	perm, err := s.access.EffectivePermission(ctx, actor, file)
	if err != nil {
		return nil, PermNone, err
	}
	if !perm.CanView() {
		// Indistinguishable from a file that does not exist.
		return nil, PermNone, common.ErrorNotFound
	}
	return file, perm, nil
}

// DownloadResult is the decrypted content of a file plus the metadata a
// caller needs to serve it.
type DownloadResult struct {
	OriginalName string
	MimeType     string
	Data         []byte
}

// Download returns the decrypted file content. Requires download permission;
// a view-only grant can read metadata but not content.
func (s *FileService) Download(ctx context.Context, actor *models.User, fileID string) (*DownloadResult, error) {
	file, perm, err := s.GetAuthorized(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}
	if !perm.CanDownload() {
		return nil, common.ErrorUnauthorized
	}

	key, err := keyx.Parse(file.KeyRef)
	if err != nil {
		s.logger.Error(ctx, "stored key is unusable", "file_id", file.ID, "error", err)
		return nil, common.ErrorInternal
	}
	defer key.Wipe()

	data, err := s.store.Get(ctx, file.StoredName, key)
	if err != nil {
		if errors.Is(err, common.ErrDecryption) {
			s.logger.Error(ctx, "ciphertext failed authentication", "file_id", file.ID)
			return nil, common.ErrDecryption
		}
		s.logger.Error(ctx, "blob read failed", "file_id", file.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &DownloadResult{
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
		Data:         data,
	}, nil
}

// Delete removes the registry row and then the ciphertext blob. Owner or
// admin only. The row is removed first so the file disappears atomically;
// a failed blob delete leaves an orphan for the sweep.
func (s *FileService) Delete(ctx context.Context, actor *models.User, fileID string) error {
	file, perm, err := s.GetAuthorized(ctx, actor, fileID)
	if err != nil {
		return err
	}
	if !perm.CanManage() {
		return common.ErrorUnauthorized
	}

	repo := s.repomanager.Files(s.db)
	if err := repo.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("error deleting file record: %w", err)
	}

	if err := s.store.Delete(ctx, file.StoredName); err != nil {
		s.logger.Warn(ctx, "blob delete failed, leaving orphan for sweep", "name", file.StoredName, "error", err)
	}
	return nil
}

// List returns the files visible to the actor, newest first: own files plus
// files reachable through a live claimed share grant. Admins see all files.
func (s *FileService) List(ctx context.Context, actor *models.User) ([]*models.File, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}
	repo := s.repomanager.Files(s.db)
	if models.IsAdmin(actor) {
		return repo.ListAll(ctx)
	}
	return repo.ListVisible(ctx, actor.ID, time.Now())
}
