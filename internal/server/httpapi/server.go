// Package httpapi exposes the Linkup services over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkup/internal/logging"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error)
	Login(ctx context.Context, loginName, password string) (string, error)
	ConfirmRegistration(ctx context.Context, email, code string) (string, error)
	InitiateForgotPassword(ctx context.Context, loginName string) error
	ChangePassword(ctx context.Context, loginName, code, newPassword string) error
	GenerateUsername(ctx context.Context, base, firstName string) (string, error)
	ValidateUsername(ctx context.Context, username string) (bool, []string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
}

type MediaService interface {
	Upload(ctx context.Context, userID string, u services.Upload) (*models.Media, error)
	List(ctx context.Context, userID string) ([]*models.Media, error)
	DownloadURL(ctx context.Context, userID, id string) (*models.Media, string, error)
}

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	MaxUploadSize  int64
}

type Server struct {
	address  string
	logger   logging.Logger
	auth     AuthService
	profiles ProfileService
	media    MediaService
	opts     Options
}

func NewServer(address string, l logging.Logger, as AuthService, ps ProfileService, ms MediaService, opts Options) *Server {
	return &Server{
		address:  address,
		logger:   l.With("module", "http_server"),
		auth:     as,
		profiles: ps,
		media:    ms,
		opts:     opts,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
