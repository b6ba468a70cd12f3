package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/dbx"
	"github.com/shareguard/shareguard/internal/logging"
	"github.com/shareguard/shareguard/internal/server/models"
	filesrepo "github.com/shareguard/shareguard/internal/server/repositories/files"
	refreshtokensrepo "github.com/shareguard/shareguard/internal/server/repositories/refreshtokens"
	sharesrepo "github.com/shareguard/shareguard/internal/server/repositories/shares"
	usersrepo "github.com/shareguard/shareguard/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- fake repositories ---

// fakeUsersRepo is an in-memory users.Repository. All maps are guarded by
// mu so concurrent claim tests can share one instance.
type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]*models.User
	byName  map[string]*models.User

	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{
		byID:    map[string]*models.User{},
		byEmail: map[string]*models.User{},
		byName:  map[string]*models.User{},
	}
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.byID[u.ID] = u
	f.byEmail[strings.ToLower(u.Email)] = u
	f.byName[u.UserName] = u
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[strings.ToLower(u.Email)]; ok {
		return nil, common.ErrorAlreadyExists
	}
	return f.add(u), nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byName[username]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byName[username]
	return ok, nil
}

// fakeFilesRepo is an in-memory files.Repository.
type fakeFilesRepo struct {
	mu   sync.Mutex
	byID map[string]*models.File

	createErr error
	getErr    error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{byID: map[string]*models.File{}}
}

func (f *fakeFilesRepo) add(file *models.File) *models.File {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	f.byID[file.ID] = file
	return file
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.add(file)
	return nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if file, ok := f.byID[id]; ok {
		return file, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeFilesRepo) ListVisible(ctx context.Context, userID string, now time.Time) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, file := range f.byID {
		if file.OwnerID == userID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) ListAll(ctx context.Context) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, file := range f.byID {
		out = append(out, file)
	}
	return out, nil
}

func (f *fakeFilesRepo) StoredNameExists(ctx context.Context, storedName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.byID {
		if file.StoredName == storedName {
			return true, nil
		}
	}
	return false, nil
}

// fakeSharesRepo is an in-memory shares.Repository with the same claim
// semantics as the conditional UPDATE in the real one.
type fakeSharesRepo struct {
	mu   sync.Mutex
	byID map[string]*models.ShareGrant

	createErr error
	claimErr  error
}

func newFakeSharesRepo() *fakeSharesRepo {
	return &fakeSharesRepo{byID: map[string]*models.ShareGrant{}}
}

func (f *fakeSharesRepo) add(g *models.ShareGrant) *models.ShareGrant {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	f.byID[g.ID] = g
	return g
}

func (f *fakeSharesRepo) Create(ctx context.Context, g *models.ShareGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.add(g)
	return nil
}

func (f *fakeSharesRepo) GetByID(ctx context.Context, id string) (*models.ShareGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.byID[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSharesRepo) GetByToken(ctx context.Context, token string) (*models.ShareGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.byID {
		if g.AccessToken == token {
			cp := *g
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSharesRepo) Claim(ctx context.Context, grantID, userID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	g, ok := f.byID[grantID]
	if !ok || g.SharedWith != "" || !now.Before(g.ExpiresAt) {
		return false, nil
	}
	g.SharedWith = userID
	return true, nil
}

func (f *fakeSharesRepo) Expire(ctx context.Context, grantID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.byID[grantID]; ok && now.Before(g.ExpiresAt) {
		g.ExpiresAt = now
	}
	return nil
}

func (f *fakeSharesRepo) FindLiveForUserAndFile(ctx context.Context, userID, fileID string, now time.Time) (*models.ShareGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.byID {
		if g.SharedWith == userID && g.FileID == fileID && now.Before(g.ExpiresAt) {
			cp := *g
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSharesRepo) ListForActor(ctx context.Context, userID string) ([]*models.ShareGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ShareGrant
	for _, g := range f.byID {
		if g.CreatedBy == userID || g.SharedWith == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSharesRepo) ListAll(ctx context.Context) ([]*models.ShareGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ShareGrant
	for _, g := range f.byID {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

// fakeRefreshRepo is an in-memory refreshtokens.Repository.
type fakeRefreshRepo struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken

	createErr error
	findErr   error
	delErr    error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byToken: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.byToken[token] = &models.RefreshToken{
		ID: uuid.NewString(), UserID: userID, Token: token, Expires: time.Now().Add(validity),
	}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if t, ok := f.byToken[token]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.byToken, token)
	return nil
}

// fakeRepoManager vends the fakes regardless of the DBTX handed in.
type fakeRepoManager struct {
	u  *fakeUsersRepo
	f  *fakeFilesRepo
	s  *fakeSharesRepo
	rt *fakeRefreshRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u:  newFakeUsersRepo(),
		f:  newFakeFilesRepo(),
		s:  newFakeSharesRepo(),
		rt: newFakeRefreshRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository                 { return m.f }
func (m *fakeRepoManager) Shares(db dbx.DBTX) sharesrepo.Repository               { return m.s }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.rt }
