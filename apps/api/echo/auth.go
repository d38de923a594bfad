package echoapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// Claims represents the session token. The token id (jti) is the session id.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	RoleName string `json:"role_name,omitempty"`
}

type (
	LoginRequest struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string         `json:"token"`
		User  auth.Principal `json:"user"`
	}
)

func (lr *LoginRequest) Validate(s *Server) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return s.Validate.Struct(lr)
}

// GenerateToken signs a session token for p, valid until expiresAt.
func (s *Server) GenerateToken(p auth.Principal, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        p.SessionID,
			Issuer:    s.Conf.AppName,
			Subject:   strconv.Itoa(p.UserID),
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: p.Username,
		RoleName: p.RoleName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (s *Server) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errUnexpectedSigningMethod
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid || claims.Id == "" {
		return nil, errUnauthorized
	}
	return claims, nil
}

// requestToken reads the session cookie, then the bearer token.
func (s *Server) requestToken(req *http.Request) string {
	if c, err := req.Cookie(s.Conf.Server.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := req.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.Conf.Server.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) clearSessionCookie(ctx echo.Context) {
	c := s.sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	ctx.SetCookie(c)
}

// authenticate resolves the principal of the request's session.
func (s *Server) authenticate(ctx echo.Context) (auth.Principal, error) {
	raw := s.requestToken(ctx.Request())
	if raw == "" {
		return auth.Principal{}, errUnauthorized
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return auth.Principal{}, err
	}
	p, err := s.AuthSvc.Authenticate(ctx.Request().Context(), claims.Id)
	if err != nil {
		switch errors.Cause(err) {
		case auth.ErrSessionExpired, auth.ErrAccountDeactivated, auth.ErrUnknownRole:
			return auth.Principal{}, errUnauthorized
		}
		return auth.Principal{}, errors.Wrap(err, "authenticating session")
	}
	return p, nil
}

// sessionMiddleware rejects requests without an active session. Browsers are
// sent to the login page, API clients get a 401.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := s.authenticate(ctx)
		if err != nil {
			if err != errUnauthorized {
				return err
			}
			s.clearSessionCookie(ctx)
			if wantsHTML(ctx.Request()) {
				return ctx.Redirect(http.StatusSeeOther, loginPath)
			}
			return errUnauthorized
		}
		setContextPrincipal(ctx, p)
		return next(ctx)
	}
}

func setContextPrincipal(ctx echo.Context, p auth.Principal) {
	req := ctx.Request()
	ctx.SetRequest(req.WithContext(auth.NewContext(req.Context(), p)))
}

func getContextPrincipal(ctx echo.Context) (auth.Principal, error) {
	if p, ok := auth.FromContext(ctx.Request().Context()); ok {
		return p, nil
	}
	return auth.Principal{}, errUnauthorized
}

func wantsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func isFormPost(req *http.Request) bool {
	ct := req.Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

// Handlers

func (s *Server) home(ctx echo.Context) error {
	if _, err := s.authenticate(ctx); err == nil {
		return ctx.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return ctx.Redirect(http.StatusSeeOther, loginPath)
}

func (s *Server) loginPage(ctx echo.Context) error {
	if _, err := s.authenticate(ctx); err == nil {
		return ctx.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"school": s.Conf.SchoolName})
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s); err != nil {
		return err
	}

	meta := auth.SessionMeta{IPAddress: ctx.RealIP(), UserAgent: ctx.Request().UserAgent()}
	p, err := s.AuthSvc.Login(ctx.Request().Context(), data.Username, data.Password, meta)
	if err != nil {
		switch errors.Cause(err) {
		case auth.ErrAuthenticationFailed:
			return core.NewValidationError(errInvalidCredentials)
		case auth.ErrAccountDeactivated:
			return errAccountDeactivated
		case auth.ErrUnknownRole:
			return errUnknownProfile
		}
		return errors.Wrap(err, "logging in")
	}

	expires := time.Now().Add(s.Conf.Server.SessionTTL)
	token, err := s.GenerateToken(p, expires)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	ctx.SetCookie(s.sessionCookie(token, expires))

	if isFormPost(ctx.Request()) {
		return ctx.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: p})
}

func (s *Server) logout(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = s.AuthSvc.Logout(ctx.Request().Context(), p.SessionID); err != nil {
		return errors.Wrap(err, "logging out")
	}
	s.clearSessionCookie(ctx)
	if wantsHTML(ctx.Request()) || isFormPost(ctx.Request()) {
		return ctx.Redirect(http.StatusSeeOther, loginPath)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) dashboard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	view, err := s.DashboardSvc.Dashboard(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, view)
}
