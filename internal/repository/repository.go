package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

func pick(exec sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

// listQuery accumulates positional WHERE conditions for list endpoints.
type listQuery struct {
	conditions []string
	args       []interface{}
}

func (q *listQuery) add(format string, arg interface{}) {
	q.args = append(q.args, arg)
	q.conditions = append(q.conditions, fmt.Sprintf(format, len(q.args)))
}

func (q *listQuery) where(base string) string {
	if len(q.conditions) == 0 {
		return base
	}
	return base + " AND " + strings.Join(q.conditions, " AND ")
}

func sortClause(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}
