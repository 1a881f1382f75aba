// Package sqlutil has squirrel helpers shared by the store-backed packages.
// Queries are built with the default "?" placeholder and executed through
// gorm's Raw, which rebinds for the active dialect.
package sqlutil

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

type notExists struct {
	sub sq.SelectBuilder
}

func (n notExists) ToSql() (string, []any, error) {
	sql, args, err := n.sub.ToSql()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("NOT EXISTS (%s)", sql), args, nil
}

// NotExists renders NOT EXISTS (sub).
func NotExists(sub sq.SelectBuilder) sq.Sqlizer {
	return notExists{sub: sub}
}

// Where adds pred to sb unless it is nil.
func Where(sb sq.SelectBuilder, preds ...sq.Sqlizer) sq.SelectBuilder {
	for _, p := range preds {
		if p != nil {
			sb = sb.Where(p)
		}
	}
	return sb
}

// Scan renders sb and scans the result rows into dest.
func Scan(db *gorm.DB, sb sq.SelectBuilder, dest any) error {
	sql, args, err := sb.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return db.Raw(sql, args...).Scan(dest).Error
}
