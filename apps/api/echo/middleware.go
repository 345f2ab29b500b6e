package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

// requireRole only lets through users holding minRole or a role inheriting it.
func requireRole(az Authorizer, minRole string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !az.HasRole(usr.Roles, minRole) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func requirePermission(az Authorizer, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			ok, err := az.HasPermission(usr.Roles, permission)
			if err != nil {
				return errors.Wrap(err, "checking permission")
			}
			if !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// userObjectMiddleware loads the user of the ":id" path param into the context.
func userObjectMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(ctxObjectKey, usr)
			return next(ctx)
		}
	}
}

func getContextObject(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(ctxObjectKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}
