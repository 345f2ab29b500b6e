package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

type roleApi struct {
	svc user.ServiceInterface
}

func registerRoleAPI(g *echo.Group, authn echo.MiddlewareFunc, az Authorizer, svc user.ServiceInterface) {
	api := roleApi{svc: svc}

	rg := g.Group("/roles")
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.POST("/initialize", api.initialize, authn, requireRole(az, user.RoleAdmin))
}

func (api *roleApi) query(ctx echo.Context) error {
	roles, err := api.svc.QueryRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	if roles == nil {
		roles = []user.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *roleApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	role, err := api.svc.GetRole(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding role by ID")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *roleApi) initialize(ctx echo.Context) error {
	roles, err := api.svc.InitializeDefaultRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "initializing default roles")
	}
	return ctx.JSON(http.StatusOK, RolesResponse{Detail: "Default roles initialized", Roles: roles})
}
