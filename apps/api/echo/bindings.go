package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindQueryFilter reads "search", "is_active" and (repeated or comma separated) "role" query params.
func bindQueryFilter(ctx echo.Context) (*user.QueryFilter, error) {
	filter := &user.QueryFilter{Search: ctx.QueryParam("search")}

	for _, val := range ctx.QueryParams()["role"] {
		filter.Roles = append(filter.Roles, strings.Split(val, ",")...)
	}

	if val := ctx.QueryParam("is_active"); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return nil, core.NewValidationError(
				errors.Errorf("invalid is_active: %s", val),
				core.FieldError{Field: "is_active", Error: "must be a boolean"},
			)
		}
		filter.IsActive = &active
	}
	return filter, nil
}
