package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/user"
)

var (
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionNotFound      = core.NotFound("session")
)

type (
	Session struct {
		ID        string      `db:"session_id"`
		UserID    int         `db:"user_id"`
		IPAddress null.String `db:"ip_address"`
		UserAgent null.String `db:"user_agent"`
		CreatedAt time.Time   `db:"created_at"`
		ExpiresAt time.Time   `db:"expires_at"`
		RevokedAt null.Time   `db:"revoked_at"`
	}

	// SessionMeta describes the client opening a session.
	SessionMeta struct {
		IPAddress string
		UserAgent string
	}

	Repository interface {
		CreateSession(ctx context.Context, s Session) error
		GetSession(ctx context.Context, id string) (Session, error)
		RevokeSession(ctx context.Context, id string, at time.Time) error
		// FullName returns the name of the person linked to userID, or "" when none is.
		FullName(ctx context.Context, userID int) (string, error)
	}

	Service struct {
		repo    Repository
		userSvc *user.Service
		ttl     time.Duration
		nowFunc func() time.Time
	}
)

func (s Session) Active(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}

func NewService(repo Repository, userSvc *user.Service, ttl time.Duration) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(userSvc, "userSvc"),
	).CheckAndPanic()

	return &Service{
		repo:    repo,
		userSvc: userSvc,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Login verifies the credentials and opens a new session.
func (svc *Service) Login(ctx context.Context, username, password string, meta SessionMeta) (Principal, error) {
	usr, err := svc.userSvc.GetByUsernameOrEmail(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return Principal{}, ErrAuthenticationFailed
		}
		return Principal{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(password); err != nil {
		return Principal{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return Principal{}, ErrAccountDeactivated
	}

	p, err := svc.principal(ctx, usr)
	if err != nil {
		return Principal{}, err
	}

	if _, err = svc.userSvc.SetLastLogin(ctx, usr); err != nil {
		return Principal{}, errors.Wrap(err, "setting last login")
	}

	now := svc.nowFunc().UTC()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		IPAddress: null.NewString(meta.IPAddress, meta.IPAddress != ""),
		UserAgent: null.NewString(meta.UserAgent, meta.UserAgent != ""),
		CreatedAt: now,
		ExpiresAt: now.Add(svc.ttl),
	}
	if err = svc.repo.CreateSession(ctx, sess); err != nil {
		return Principal{}, errors.Wrap(err, "creating session")
	}
	p.SessionID = sess.ID
	return p, nil
}

// Authenticate resolves the Principal owning an active session.
func (svc *Service) Authenticate(ctx context.Context, sessionID string) (Principal, error) {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		if core.IsNotFound(err) {
			return Principal{}, ErrSessionExpired
		}
		return Principal{}, errors.Wrap(err, "getting session")
	}
	if !sess.Active(svc.nowFunc().UTC()) {
		return Principal{}, ErrSessionExpired
	}

	usr, err := svc.userSvc.GetByID(ctx, sess.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Principal{}, ErrSessionExpired
		}
		return Principal{}, errors.Wrap(err, "getting session user")
	}
	if !usr.IsActive {
		return Principal{}, ErrAccountDeactivated
	}

	p, err := svc.principal(ctx, usr)
	if err != nil {
		return Principal{}, err
	}
	p.SessionID = sess.ID
	return p, nil
}

func (svc *Service) Logout(ctx context.Context, sessionID string) error {
	err := svc.repo.RevokeSession(ctx, sessionID, svc.nowFunc().UTC())
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "revoking session")
	}
	return nil
}

func (svc *Service) principal(ctx context.Context, usr user.User) (Principal, error) {
	role, err := RoleFromRoleName(usr.RoleName)
	if err != nil {
		return Principal{}, err
	}
	fullName, err := svc.repo.FullName(ctx, usr.ID)
	if err != nil {
		return Principal{}, errors.Wrap(err, "resolving full name")
	}
	return Principal{
		UserID:   usr.ID,
		Username: usr.Username,
		Email:    usr.Email,
		FullName: fullName,
		RoleName: usr.RoleName,
		Role:     role,
	}, nil
}
