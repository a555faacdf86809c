package ledgerapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

const tokenContextKey = "sessionToken"

type (
	loginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	loginResponse struct {
		Token string `json:"token"`
	}

	authApi struct {
		conf     *core.Config
		validate *validator.Validate
	}
)

func registerAuthAPI(g *echo.Group, deps ServerDeps) {
	api := authApi{conf: deps.Conf, validate: deps.Validate}
	g.POST("/auth/login", api.login)
}

func (api *authApi) login(ctx echo.Context) error {
	data := new(loginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	hash := api.conf.Ledger.AdminPasswordHash
	if data.Username != api.conf.Ledger.AdminUsername || hash == "" {
		return errAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(data.Password)); err != nil {
		return errAuthenticationFailed
	}

	token, err := core.GenerateToken(data.Username, "", true, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, loginResponse{Token: token})
}

// contextSession materializes the verified JWT claims into the explicit
// session object the services expect.
func contextSession(ctx echo.Context) (core.Session, error) {
	token, ok := ctx.Get(tokenContextKey).(*jwt.Token)
	if !ok {
		return core.Session{}, errUnauthorized
	}
	claims, ok := token.Claims.(*core.Claims)
	if !ok {
		return core.Session{}, errUnauthorized
	}
	return core.Session{
		Token:    token.Raw,
		Username: claims.Username,
		Email:    claims.Email,
		IsAdmin:  claims.IsAdmin,
		Roles:    claims.Roles,
	}, nil
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := contextSession(ctx)
			if err != nil {
				return err
			}
			if !sess.IsAdmin {
				return errHTTPForbidden
			}
			return next(ctx)
		}
	}
}
