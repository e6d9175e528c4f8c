package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/access"
	"github.com/touchline/academy/core/user"
)

var (
	// HS256 tokens signed with the academy secret; parsed claims land under "userToken".
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
	contextUserKey  = "user"
	contextScopeKey = "scope"
)

// Claims identify a member of the academy staff or family. The role flags tell the
// frontend which dashboard to open without another round trip.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`  // club office
	IsCoach      bool     `json:"is_coach,omitempty"`  // squad dashboard
	IsParent     bool     `json:"is_parent,omitempty"` // children and invoices
	IsPlayer     bool     `json:"is_player,omitempty"` // own schedule and check-in
	Roles        []string `json:"roles,omitempty"`
}

// GetUserClaims builds the claims of usr. origIat carries the first login time over token refreshes.
func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			Audience:  "Academy",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsAdmin:      usr.IsAdmin(),
		IsCoach:      usr.IsCoach(),
		IsParent:     usr.IsParent(),
		IsPlayer:     usr.IsPlayer(),
		Roles:        usr.Roles,
	}
	return claims
}

// authenticate logs a member in by username or email. Unknown accounts and bad passwords fail alike.
func authenticate(ctx context.Context, uname, pwd string, svc user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "stamping last login")
	}
	return GetUserClaims(usr), nil
}

// GenerateToken signs claims into the bearer token sent back on login and refresh.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(appJWTConfig.SigningMethod), claims)
	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the member behind the request token once and caches it on ctx.
func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	if len(clms) == 0 {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
		clms = append(clms, claims)
	}
	claims := clms[0]

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "loading token subject")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextScope returns the scope resolved by scopeMiddleware.
func getContextScope(ctx echo.Context) access.Scope {
	if scope, ok := ctx.Get(contextScopeKey).(access.Scope); ok {
		return scope
	}
	return access.Scope{}
}

// contextHasAnyRole reports whether the token holds one of roles. No roles means any member.
func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}
	held := make(map[string]struct{}, len(claims.Roles))
	for _, r := range claims.Roles {
		held[r] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// refreshToken reissues the token of an active member until the refresh window,
// counted from their first login, closes.
func refreshToken(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// deactivated accounts, e.g. a player who left the club
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	// a coach promoted to head coach gets the new role here
	newClaims := GetUserClaims(usr, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
