package bridge

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/querybridge/value"
)

// Bind prepares query and params for a driver using bindType. With
// sqlx.NAMED each parameter is passed as an sql.NamedArg and the driver
// resolves the names itself; any other bind type rewrites :name
// placeholders into the driver's positional form, leaving literals,
// comments and casts alone. Named args are bound in key order. Names the
// driver rejects fail when the statement runs.
func Bind(bindType int, query string, params value.Params) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	if bindType == sqlx.NAMED {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		args := make([]any, len(names))
		for i, name := range names {
			args[i] = sql.Named(name, params[name].Interface())
		}
		return query, args, nil
	}

	query, order := rewriteNamed(bindType, query)
	args := make([]any, len(order))
	for i, name := range order {
		p, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("could not find name %s in params", name)
		}
		args[i] = p.Interface()
	}
	return query, args, nil
}
