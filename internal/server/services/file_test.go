package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/server/blob"
	"github.com/shareguard/shareguard/internal/server/models"
	"github.com/shareguard/shareguard/internal/server/storage"
)

func newFileServiceForTest(t *testing.T) (*FileService, *fakeRepoManager, *blob.MemoryStorage) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	rm := newFakeRepoManager()
	backend := blob.NewMemoryStorage()
	store := storage.NewStore(backend)
	access := NewAccessEvaluator(db, rm)
	return NewFileService(db, rm, store, access, testLogger()), rm, backend
}

func TestFileService_UploadDownload_RoundTrip(t *testing.T) {
	s, rm, _ := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	plaintext := []byte("secret report contents")

	file, err := s.Upload(ctx, owner, &UploadRequest{
		OriginalName: "report.pdf",
		MimeType:     "application/pdf",
		Data:         plaintext,
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if file.KeyRef == "" {
		t.Fatal("uploaded file must carry a rendered key")
	}
	if file.Size != int64(len(plaintext)) {
		t.Fatalf("want size %d, got %d", len(plaintext), file.Size)
	}

	res, err := s.Download(ctx, owner, file.ID)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if !bytes.Equal(res.Data, plaintext) {
		t.Fatal("downloaded content differs from upload")
	}
	if res.OriginalName != "report.pdf" || res.MimeType != "application/pdf" {
		t.Fatalf("metadata mismatch: %+v", res)
	}
}

func TestFileService_Upload_BlobIsCiphertext(t *testing.T) {
	s, rm, backend := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	plaintext := []byte("plaintext must never hit the blob store")

	file, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: "n", Data: plaintext})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	raw, err := backend.Get(ctx, file.StoredName)
	if err != nil {
		t.Fatalf("backend Get error: %v", err)
	}
	if bytes.Contains(raw, plaintext) {
		t.Fatal("blob store contains plaintext")
	}
}

func TestFileService_Upload_RegistryFailureCleansBlob(t *testing.T) {
	s, rm, backend := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	rm.f.createErr = errBoom{}

	_, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: "n", Data: []byte("x")})
	if err == nil {
		t.Fatal("expected error")
	}

	names, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("backend List error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("blob not cleaned up after registry failure: %v", names)
	}
}

func TestFileService_Upload_Validation(t *testing.T) {
	s, rm, _ := newFileServiceForTest(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, nil, &UploadRequest{OriginalName: "n"}); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized for nil actor, got %v", err)
	}

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	if _, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: ""}); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want ErrorValidation for empty name, got %v", err)
	}
}

func TestFileService_GetAuthorized_HidesInaccessibleFiles(t *testing.T) {
	s, rm, _ := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	stranger := rm.u.add(&models.User{UserName: "bob", Email: "bob@example.com"})

	file, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: "n", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	// A file the actor cannot see and a file that does not exist look the same.
	if _, _, err := s.GetAuthorized(ctx, stranger, file.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for inaccessible file, got %v", err)
	}
	if _, _, err := s.GetAuthorized(ctx, stranger, "no-such-id"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for missing file, got %v", err)
	}
}

func TestFileService_Download_ViewGrantDenied(t *testing.T) {
	s, rm, _ := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	viewer := rm.u.add(&models.User{UserName: "bob", Email: "bob@example.com"})

	file, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: "n", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	rm.s.add(&models.ShareGrant{
		FileID: file.ID, CreatedBy: owner.ID, SharedWith: viewer.ID,
		SharedWithEmail: viewer.Email, Permission: models.PermissionView,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	// Metadata is visible through the view grant...
	if _, _, err := s.GetAuthorized(ctx, viewer, file.ID); err != nil {
		t.Fatalf("GetAuthorized error: %v", err)
	}
	// ...but content download is not.
	if _, err := s.Download(ctx, viewer, file.ID); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestFileService_Delete(t *testing.T) {
	s, rm, backend := newFileServiceForTest(t)
	ctx := context.Background()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	downloader := rm.u.add(&models.User{UserName: "bob", Email: "bob@example.com"})

	file, err := s.Upload(ctx, owner, &UploadRequest{OriginalName: "n", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	rm.s.add(&models.ShareGrant{
		FileID: file.ID, CreatedBy: owner.ID, SharedWith: downloader.ID,
		SharedWithEmail: downloader.Email, Permission: models.PermissionDownload,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	// Even a download grant does not allow deletion.
	if err := s.Delete(ctx, downloader, file.ID); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}

	if err := s.Delete(ctx, owner, file.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if _, _, err := s.GetAuthorized(ctx, owner, file.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("file still accessible after delete: %v", err)
	}
	names, _ := backend.List(ctx)
	if len(names) != 0 {
		t.Fatalf("blob survived delete: %v", names)
	}
}

func TestFileService_List(t *testing.T) {
	s, rm, _ := newFileServiceForTest(t)
	ctx := context.Background()

	alice := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com"})
	bob := rm.u.add(&models.User{UserName: "bob", Email: "bob@example.com"})
	admin := rm.u.add(&models.User{UserName: "root", Email: "root@example.com", Role: models.RoleAdmin})

	if _, err := s.Upload(ctx, alice, &UploadRequest{OriginalName: "a", Data: []byte("1")}); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if _, err := s.Upload(ctx, bob, &UploadRequest{OriginalName: "b", Data: []byte("2")}); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	got, err := s.List(ctx, alice)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 || got[0].OriginalName != "a" {
		t.Fatalf("unexpected listing for alice: %+v", got)
	}

	all, err := s.List(ctx, admin)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin must see all files, got %d", len(all))
	}
}
