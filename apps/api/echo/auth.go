package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

const (
	ctxUserKey   = "user"
	ctxClaimsKey = "claims"
	ctxObjectKey = "object"
)

// authMiddleware verifies the bearer token, then resolves (and syncs when needed) the local user.
func authMiddleware(verifier TokenVerifier, svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := verifier.VerifyHeader(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			usr, err := svc.Authenticate(ctx.Request().Context(), claims.Identity())
			if err != nil {
				return errors.Wrap(err, "authenticating user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(ctxClaimsKey, claims)
			ctx.Set(ctxUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(ctxUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
