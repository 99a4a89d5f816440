package httpapi

import (
	"context"
	"io"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/logging"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/services"
)

const goodToken = "good-token"

type fakeAuth struct {
	registered  *services.RegisterInput
	registerErr error

	loginErr   error
	confirmErr error
	forgotErr  error
	changeErr  error

	generated   string
	available   bool
	suggestions []string
	usernameErr error

	user    *models.User
	authErr error

	calls []string
}

func (f *fakeAuth) Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error) {
	f.calls = append(f.calls, "register")
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = &in
	return &services.RegisterResult{UserID: "u1", Email: in.Email}, nil
}

func (f *fakeAuth) Login(ctx context.Context, loginName, password string) (string, error) {
	f.calls = append(f.calls, "login:"+loginName)
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "jwt-login", nil
}

func (f *fakeAuth) ConfirmRegistration(ctx context.Context, email, code string) (string, error) {
	f.calls = append(f.calls, "confirm:"+email+":"+code)
	if f.confirmErr != nil {
		return "", f.confirmErr
	}
	return "jwt-confirm", nil
}

func (f *fakeAuth) InitiateForgotPassword(ctx context.Context, loginName string) error {
	f.calls = append(f.calls, "forgot:"+loginName)
	return f.forgotErr
}

func (f *fakeAuth) ChangePassword(ctx context.Context, loginName, code, newPassword string) error {
	f.calls = append(f.calls, "change:"+loginName+":"+code)
	return f.changeErr
}

func (f *fakeAuth) GenerateUsername(ctx context.Context, base, firstName string) (string, error) {
	return f.generated, f.usernameErr
}

func (f *fakeAuth) ValidateUsername(ctx context.Context, username string) (bool, []string, error) {
	return f.available, f.suggestions, f.usernameErr
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	if token != goodToken {
		return nil, common.ErrInvalidToken
	}
	return f.user, nil
}

type fakeProfiles struct {
	user   *models.User
	update *models.ProfileUpdate
	err    error
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeProfiles) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, common.ErrNoProfileData
	}
	if f.err != nil {
		return nil, f.err
	}
	f.update = &upd
	u := *f.user
	if upd.Bio != nil {
		u.Bio = upd.Bio
	}
	if upd.Gender != nil {
		u.Gender = upd.Gender
	}
	return &u, nil
}

type fakeMedia struct {
	uploaded *services.Upload
	body     string
	items    []*models.Media
	item     *models.Media
	err      error
}

func (f *fakeMedia) Upload(ctx context.Context, userID string, u services.Upload) (*models.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(u.Body)
	f.body = string(b)
	f.uploaded = &u
	return &models.Media{ID: "m1", UserID: userID, URL: "http://s3/linkup/uploads/" + u.Name}, nil
}

func (f *fakeMedia) List(ctx context.Context, userID string) ([]*models.Media, error) {
	return f.items, f.err
}

func (f *fakeMedia) DownloadURL(ctx context.Context, userID, id string) (*models.Media, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if f.item == nil || f.item.ID != id || f.item.UserID != userID {
		return nil, "", common.ErrorNotFound
	}
	return f.item, "http://s3/signed", nil
}

type testEnv struct {
	srv      *Server
	auth     *fakeAuth
	profiles *fakeProfiles
	media    *fakeMedia
}

func newTestEnv() *testEnv {
	user := &models.User{ID: "u1", Username: "alice", Email: "alice@example.com", IsVerified: true}
	e := &testEnv{
		auth:     &fakeAuth{user: user},
		profiles: &fakeProfiles{user: user},
		media:    &fakeMedia{},
	}
	e.srv = NewServer("127.0.0.1:0", logging.Discard(), e.auth, e.profiles, e.media, Options{MaxUploadSize: 1 << 10})
	return e
}
