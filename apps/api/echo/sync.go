package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

const (
	syncFailedError   = "Sync failed"
	syncFailedDetails = "temporary failure, safe to retry"
)

type authApi struct {
	verifier TokenVerifier
	svc      user.ServiceInterface
	logger   core.Logger
}

func registerAuthAPI(g *echo.Group, verifier TokenVerifier, svc user.ServiceInterface, logger core.Logger) {
	api := authApi{
		verifier: verifier,
		svc:      svc,
		logger:   logger,
	}

	ag := g.Group("/auth")
	ag.POST("/sync", api.sync)
}

// sync creates or refreshes the local user of the bearer token. Deactivated users are synced too.
func (api *authApi) sync(ctx echo.Context) error {
	claims, err := api.verifier.VerifyHeader(ctx.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	usr, _, err := api.svc.Sync(reqCtx, claims.Identity())
	if err == nil {
		err = api.svc.SetLastLogin(reqCtx, &usr)
	}
	if err != nil {
		var vErr *core.ValidationError
		var cErr *core.ConflictError
		if errors.As(err, &vErr) || errors.As(err, &cErr) {
			return err
		}

		api.logger.Error(syncFailedError, errors.Wrap(err, "syncing user"), map[string]interface{}{"supabase_id": claims.Subject})
		details := syncFailedDetails
		if ctx.Echo().Debug {
			details = err.Error()
		}
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": syncFailedError, "details": details})
	}

	return ctx.JSON(http.StatusOK, SyncResponse{
		Success: true,
		Message: "User synced successfully",
		User:    newSyncedUser(usr),
	})
}
