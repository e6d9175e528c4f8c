package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/touchline/academy/core"
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

// Query parameters are parsed leniently: a malformed value is ignored like a missing one.

func queryString(ctx echo.Context, name string, lower ...bool) string {
	return core.CleanString(ctx.QueryParam(name), lower...)
}

// queryList collects repeated and comma separated values, nil when the parameter is absent.
func queryList(ctx echo.Context, name string) []string {
	var list []string
	for _, v := range ctx.QueryParams()[name] {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

func queryBool(ctx echo.Context, name string) *bool {
	b, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &b
}

func queryInt(ctx echo.Context, name string) int {
	i, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil || i < 0 {
		return 0
	}
	return i
}

// queryTime accepts RFC3339 timestamps as well as plain dates.
func queryTime(ctx echo.Context, name string) time.Time {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC()
	}
	if d, err := core.ParseDate(val); err == nil {
		return d.Time
	}
	return time.Time{}
}

func queryDate(ctx echo.Context, name string) core.Date {
	t := queryTime(ctx, name)
	if t.IsZero() {
		return core.Date{}
	}
	return core.DateOf(t)
}

// scopedIDs intersects the requested IDs with the allowed ones. A nil allowed list allows everything.
// The result is nil only when both inputs are nil.
func scopedIDs(requested, allowed []string) []string {
	if allowed == nil {
		return requested
	}
	if requested == nil {
		return allowed
	}
	ids := make([]string, 0, len(requested))
	for _, id := range requested {
		if core.StringIn(id, allowed...) {
			ids = append(ids, id)
		}
	}
	return ids
}
