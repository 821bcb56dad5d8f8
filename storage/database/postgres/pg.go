package pgrepos

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/KeviinDCV/NotionK4S/core"
)

// psql builds queries with Postgres $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering) sq.SelectBuilder {
	for _, ord := range ordering {
		b = b.OrderBy(ord.String())
	}
	return b
}
