package services

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/notify"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/media"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/otps"
	usersrepo "github.com/dmitrijs2005/linkup/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:             "k",
		TokenValidityDuration: time.Hour,
		OTPValidityDuration:   10 * time.Minute,
		QueryTimeout:          time.Second,
		MaxUploadSize:         10 << 20,
		S3Region:              "us-east-1",
		S3RootUser:            "minioadmin",
		S3RootPassword:        "minioadmin",
		S3BaseEndpoint:        "http://127.0.0.1:9000/",
		S3Bucket:              "linkup",
	}
}

// fakeUsersRepo is an in-memory credential store with the same uniqueness
// rules as the users table.
type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	taken map[string]bool // extra usernames reported as existing
	err   error           // returned by every call when set

	verified  []string
	passwords map[string]string
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}, taken: map[string]bool{}, passwords: map[string]string{}}
}

func (f *fakeUsersRepo) add(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = "u" + strconv.Itoa(f.nextID)
	}
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byID {
		if existing.Username == u.Username {
			return nil, &common.DuplicateKeyError{Fields: []string{"username"}}
		}
		if existing.Email == u.Email {
			return nil, &common.DuplicateKeyError{Fields: []string{"email"}}
		}
	}
	f.nextID++
	c := *u
	c.ID = "u" + strconv.Itoa(f.nextID)
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByLoginName(ctx context.Context, name string) (*models.User, error) {
	if common.IsEmail(name) {
		return f.FindByEmail(ctx, name)
	}
	return f.find(func(u *models.User) bool { return u.Username == name })
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) UsernameExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	taken := f.taken[name]
	f.mu.Unlock()
	if taken {
		return true, nil
	}
	_, err := f.find(func(u *models.User) bool { return u.Username == name })
	if err == common.ErrorNotFound {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.FindByEmail(ctx, email)
	if err == common.ErrorNotFound {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUsersRepo) MarkVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.IsVerified = true
	f.verified = append(f.verified, id)
	return nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	f.passwords[id] = hash
	return nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for dst, src := range map[**string]*string{
		&u.Bio: upd.Bio, &u.MobileNumber: upd.MobileNumber, &u.Gender: upd.Gender,
		&u.CoverImage: upd.CoverImage, &u.ProfileImageURL: upd.ProfileImageURL,
	} {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	c := *u
	return &c, nil
}

// fakeOtpsRepo mimics otp_verifications, including the guarded consume.
type fakeOtpsRepo struct {
	mu      sync.Mutex
	records []*models.OtpRecord
	now     func() time.Time
	err     error
}

func newFakeOtpsRepo() *fakeOtpsRepo {
	return &fakeOtpsRepo{now: time.Now}
}

func (f *fakeOtpsRepo) Create(ctx context.Context, userID, code string, ttl time.Duration) (*models.OtpRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	now := f.now()
	// Distinct creation times keep "most recent" well defined.
	if n := len(f.records); n > 0 && !now.After(f.records[n-1].CreatedAt) {
		now = f.records[n-1].CreatedAt.Add(time.Microsecond)
	}
	rec := &models.OtpRecord{
		ID:        "otp" + strconv.Itoa(len(f.records)+1),
		UserID:    userID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	f.records = append(f.records, rec)
	c := *rec
	return &c, nil
}

func (f *fakeOtpsRepo) FindLatestValid(ctx context.Context, userID, code string) (*models.OtpRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	now := f.now()
	var matches []*models.OtpRecord
	for _, r := range f.records {
		if r.UserID == userID && r.Code == code && !r.IsVerified && now.Before(r.ExpiresAt) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	c := *matches[0]
	return &c, nil
}

func (f *fakeOtpsRepo) MarkVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, r := range f.records {
		if r.ID == id && !r.IsVerified {
			r.IsVerified = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeOtpsRepo) get(id string) *models.OtpRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			c := *r
			return &c
		}
	}
	return nil
}

type fakeMediaRepo struct {
	created []*models.Media
	items   []*models.Media
	getOut  *models.Media
	err     error
}

func (f *fakeMediaRepo) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	m.ID = "m" + strconv.Itoa(len(f.created)+1)
	f.created = append(f.created, m)
	return m, nil
}

func (f *fakeMediaRepo) GetByID(ctx context.Context, userID, id string) (*models.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.getOut == nil || f.getOut.ID != id || f.getOut.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return f.getOut, nil
}

func (f *fakeMediaRepo) ListByUser(ctx context.Context, userID string) ([]*models.Media, error) {
	return f.items, f.err
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	o *fakeOtpsRepo
	m *fakeMediaRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), o: newFakeOtpsRepo(), m: &fakeMediaRepo{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Otps(db dbx.DBTX) otps.Repository             { return m.o }
func (m *fakeRepoManager) Media(db dbx.DBTX) media.Repository           { return m.m }

// recordingQueue remembers enqueued jobs.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []notify.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job notify.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// recordingMailer remembers sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// takenUsers reports every username as existing and counts the lookups.
type takenUsers struct {
	*fakeUsersRepo
	calls int
}

func (t *takenUsers) UsernameExists(ctx context.Context, name string) (bool, error) {
	t.calls++
	return true, nil
}

type fakeRepoManagerWithUsers struct {
	*fakeRepoManager
	users usersrepo.Repository
}

func (m *fakeRepoManagerWithUsers) Users(db dbx.DBTX) usersrepo.Repository { return m.users }

// failingMarkVerified fails the activation step of a confirmation.
type failingMarkVerified struct {
	*fakeUsersRepo
}

func (f *failingMarkVerified) MarkVerified(ctx context.Context, id string) error {
	return errBoom{}
}
