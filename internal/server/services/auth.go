package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/logging"
	"github.com/dmitrijs2005/linkup/internal/server/auth"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/notify"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
)

// RegisterInput carries an already validated registration request.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	Password    string
	DateOfBirth time.Time
}

// RegisterResult identifies the created, still unverified account.
type RegisterResult struct {
	UserID string
	Email  string
}

// AuthService drives registration, verification, login and password
// reset on top of the credential store, the OTP ledger, the username
// negotiator and the token issuer.
type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	ledger       *OtpLedger
	usernames    *UsernameNegotiator
	issuer       *auth.Issuer
	queue        notify.Queue
	mailer       notify.Mailer
	logger       logging.Logger
	queryTimeout time.Duration

	hashPassword    func(string) (string, error)
	comparePassword func(hash, password string) (bool, error)
}

func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	cfg *config.Config,
	ledger *OtpLedger,
	usernames *UsernameNegotiator,
	issuer *auth.Issuer,
	queue notify.Queue,
	mailer notify.Mailer,
	logger logging.Logger,
) *AuthService {
	return &AuthService{
		db:              db,
		repomanager:     m,
		ledger:          ledger,
		usernames:       usernames,
		issuer:          issuer,
		queue:           queue,
		mailer:          mailer,
		logger:          logger.With("module", "auth"),
		queryTimeout:    cfg.QueryTimeout,
		hashPassword:    auth.HashPassword,
		comparePassword: auth.ComparePassword,
	}
}

// Register creates an unverified account and queues the verification email.
// Queueing is best effort: a failure is logged and the account still exists.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := passwordLength("password", in.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(in.Email)
	if err := s.checkAvailable(ctx, in.Username, email); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  in.DateOfBirth,
	}

	qctx, cancel := withTimeout(ctx, s.queryTimeout)
	user, err = s.repomanager.Users(s.db).Create(qctx, user)
	cancel()
	if err != nil {
		var dup *common.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", dbx.Classify(err))
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	if err := s.queue.Enqueue(ctx, notify.NewJob(user.ID, user.Email, notify.IntentVerify)); err != nil {
		s.logger.Warn(ctx, "verification email not queued", "user_id", user.ID, "error", err)
	}

	return &RegisterResult{UserID: user.ID, Email: user.Email}, nil
}

// Login exchanges credentials for a session token. Unknown login names,
// unverified accounts and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, loginName, password string) (string, error) {
	user, err := s.findByLoginName(ctx, loginName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", err
	}

	if user.State() != models.StateVerified {
		return "", common.ErrInvalidCredentials
	}

	ok, err := s.comparePassword(user.PasswordHash, password)
	if err != nil {
		return "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return "", common.ErrInvalidCredentials
	}

	return s.signToken(user.ID)
}

// ConfirmRegistration consumes a verification code and activates the
// account in one transaction, then signs a session token.
func (s *AuthService) ConfirmRegistration(ctx context.Context, email, code string) (string, error) {
	qctx, cancel := withTimeout(ctx, s.queryTimeout)
	user, err := s.repomanager.Users(s.db).FindByEmail(qctx, strings.ToLower(email))
	cancel()
	if err != nil {
		return "", s.lookupError(err)
	}

	v, err := s.ledger.Validate(ctx, code, user.ID)
	if err != nil {
		return "", err
	}
	if !v.Valid {
		return "", common.ErrInvalidOtp
	}

	tctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	err = dbx.WithTx(tctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ledger.Consume(ctx, tx, v.RecordID); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).MarkVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "user verified", "user_id", user.ID)

	return s.signToken(user.ID)
}

// InitiateForgotPassword queues a password reset code for the account.
func (s *AuthService) InitiateForgotPassword(ctx context.Context, loginName string) error {
	user, err := s.findByLoginName(ctx, loginName)
	if err != nil {
		return err
	}

	if err := s.queue.Enqueue(ctx, notify.NewJob(user.ID, user.Email, notify.IntentForgotPassword)); err != nil {
		return fmt.Errorf("queue reset email: %w", err)
	}
	s.logger.Info(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ChangePassword sets a new password after checking a reset code. Reusing
// the current password is refused and leaves the code unconsumed. The hash
// update and the consumption commit together.
func (s *AuthService) ChangePassword(ctx context.Context, loginName, code, newPassword string) error {
	if err := passwordLength("newPassword", newPassword); err != nil {
		return err
	}

	user, err := s.findByLoginName(ctx, loginName)
	if err != nil {
		return err
	}

	v, err := s.ledger.Validate(ctx, code, user.ID)
	if err != nil {
		return err
	}
	if !v.Valid {
		return common.ErrInvalidOtp
	}

	same, err := s.comparePassword(user.PasswordHash, newPassword)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if same {
		return common.ErrSamePassword
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	err = dbx.WithTx(tctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return s.ledger.Consume(ctx, tx, v.RecordID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// GenerateUsername returns a free username derived from base.
func (s *AuthService) GenerateUsername(ctx context.Context, base, firstName string) (string, error) {
	return s.usernames.GenerateUnique(ctx, base, firstName)
}

// ValidateUsername reports whether username is free and, when it is not,
// up to five free alternatives.
func (s *AuthService) ValidateUsername(ctx context.Context, username string) (bool, []string, error) {
	taken, err := s.usernames.Exists(ctx, username)
	if err != nil {
		return false, nil, err
	}
	if !taken {
		return true, nil, nil
	}

	suggestions, err := s.usernames.Suggest(ctx, username, DefaultSuggestions)
	if err != nil {
		return false, nil, err
	}
	return false, suggestions, nil
}

// SendOTP issues a code for the user and mails it. It is the handler the
// notification dispatcher runs for every job.
func (s *AuthService) SendOTP(ctx context.Context, userID, email string, intent notify.Intent) error {
	code, err := s.ledger.Issue(ctx, userID)
	if err != nil {
		return err
	}

	msg, err := notify.RenderOTP(email, intent, code, s.ledger.TTL())
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", intent, err)
	}
	return nil
}

// HandleJob adapts SendOTP to notify.Handler.
func (s *AuthService) HandleJob(ctx context.Context, job notify.Job) error {
	return s.SendOTP(ctx, job.UserID, job.Email, job.Intent)
}

// Authenticate resolves a bearer token to a verified user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	qctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).FindByID(qctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, dbx.Classify(err)
	}

	if user.State() != models.StateVerified {
		return nil, common.ErrAccountNotVerified
	}
	return user, nil
}

// checkAvailable reports every registration field that is already taken.
// Concurrent registrations are still settled by the unique constraints.
func (s *AuthService) checkAvailable(ctx context.Context, username, email string) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	users := s.repomanager.Users(s.db)
	var taken []string

	exists, err := users.UsernameExists(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", dbx.Classify(err))
	}
	if exists {
		taken = append(taken, "username")
	}

	exists, err = users.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", dbx.Classify(err))
	}
	if exists {
		taken = append(taken, "email")
	}

	if len(taken) > 0 {
		return &common.DuplicateKeyError{Fields: taken}
	}
	return nil
}

// passwordLength turns an over-long password into a field error.
func passwordLength(field, password string) error {
	if err := auth.CheckPasswordLength(password); err != nil {
		return &common.ValidationError{Fields: map[string]string{
			"[body." + field + "]": "Password must be at most 72 bytes",
		}}
	}
	return nil
}

func (s *AuthService) findByLoginName(ctx context.Context, loginName string) (*models.User, error) {
	if common.IsEmail(loginName) {
		loginName = strings.ToLower(loginName)
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).FindByLoginName(ctx, loginName)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return user, nil
}

func (s *AuthService) lookupError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return dbx.Classify(err)
}

func (s *AuthService) signToken(userID string) (string, error) {
	token, err := s.issuer.SignUser(userID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return token, nil
}
