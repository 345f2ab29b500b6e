package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

type userApi struct {
	svc      user.ServiceInterface
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	authn echo.MiddlewareFunc,
	az Authorizer,
	svc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := userApi{
		svc:      svc,
		validate: validate,
	}

	// public user detail
	g.GET("/users/:id", api.retrieve, userObjectMiddleware(svc))

	ug := g.Group("/users", authn)
	ug.GET("", api.query, requirePermission(az, user.PermManageUsers))
	ug.GET("/me", api.me)
	ug.PATCH("/me/profile", api.updateProfile)
	ug.GET("/me/statistics", api.statistics)

	// detail endpoints
	canAssign := []echo.MiddlewareFunc{requirePermission(az, user.PermAssignRoles), userObjectMiddleware(svc)}
	ug.POST("/:id/assign-role", api.assignRole, canAssign...)
	ug.POST("/:id/revoke-role", api.revokeRole, canAssign...)

	canManage := []echo.MiddlewareFunc{requirePermission(az, user.PermManageUsers), userObjectMiddleware(svc)}
	ug.POST("/:id/deactivate", api.deactivate, canManage...)
	ug.POST("/:id/activate", api.activate, canManage...)
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	profile, err := api.svc.UpdateProfile(ctx.Request().Context(), &usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *userApi) statistics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.Statistics(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) assignRole(ctx echo.Context) error {
	ctxUsr, obj, data, err := api.bindRoleRequest(ctx)
	if err != nil {
		return err
	}

	if _, err = api.svc.AssignRole(ctx.Request().Context(), &obj, data.RoleName, &ctxUsr); err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return ctx.JSON(http.StatusOK, DetailResponse{
		Detail: fmt.Sprintf("Role %s assigned to %s", user.RoleDisplay(data.RoleName), obj.DisplayName),
		User:   obj,
	})
}

func (api *userApi) revokeRole(ctx echo.Context) error {
	ctxUsr, obj, data, err := api.bindRoleRequest(ctx)
	if err != nil {
		return err
	}

	revoked, err := api.svc.RevokeRole(ctx.Request().Context(), &obj, data.RoleName, &ctxUsr)
	if err != nil {
		return errors.Wrap(err, "revoking role")
	}
	if !revoked {
		return core.NewValidationError(user.ErrRoleNotHeld)
	}
	return ctx.JSON(http.StatusOK, DetailResponse{
		Detail: fmt.Sprintf("Role %s revoked from %s", user.RoleDisplay(data.RoleName), obj.DisplayName),
		User:   obj,
	})
}

func (api *userApi) bindRoleRequest(ctx echo.Context) (ctxUsr user.User, obj user.User, data RoleRequest, err error) {
	if ctxUsr, err = getContextUser(ctx); err != nil {
		return
	}
	if obj, err = getContextObject(ctx); err != nil {
		return
	}
	if err = ctx.Bind(&data); err != nil {
		err = errors.Wrap(err, "binding to RoleRequest")
		return
	}
	err = data.Validate(api.validate)
	return
}

func (api *userApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *userApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *userApi) setActive(ctx echo.Context, active bool) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	obj, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	action := "activated"
	if active {
		err = api.svc.Activate(ctx.Request().Context(), &obj, &ctxUsr)
	} else {
		action = "deactivated"
		err = api.svc.Deactivate(ctx.Request().Context(), &obj, &ctxUsr)
	}
	if err != nil {
		return errors.Wrapf(err, "setting user %s", action)
	}
	return ctx.JSON(http.StatusOK, DetailResponse{
		Detail: fmt.Sprintf("User %s %s", obj.DisplayName, action),
		User:   obj,
	})
}
