package social

import (
	"github.com/bluesky-social/feedview/util/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// ExcludeBlocked drops rows where any of cols names an account with a block,
// in either direction, against requester. It returns nil for an anonymous
// requester.
func ExcludeBlocked(requester string, cols ...string) sq.Sqlizer {
	if requester == "" || len(cols) == 0 {
		return nil
	}

	var either sq.Or
	for _, col := range cols {
		either = append(either,
			sq.And{sq.Eq{"b.author": requester}, sq.Expr("b.subject = " + col)},
			sq.And{sq.Expr("b.author = " + col), sq.Eq{"b.subject": requester}},
		)
	}

	return sqlutil.NotExists(sq.Select("1").From("block_records b").Where(either))
}

// ExcludeMuted drops rows where any of cols names an account requester mutes.
func ExcludeMuted(requester string, cols ...string) sq.Sqlizer {
	if requester == "" || len(cols) == 0 {
		return nil
	}

	var subjects sq.Or
	for _, col := range cols {
		subjects = append(subjects, sq.Expr("m.subject = "+col))
	}

	return sqlutil.NotExists(sq.Select("1").From("mute_records m").
		Where(sq.Eq{"m.muter": requester}).
		Where(subjects))
}

// Exclude combines ExcludeBlocked and ExcludeMuted over the same columns.
// It returns nil when there is nothing to exclude.
func Exclude(requester string, cols ...string) sq.Sqlizer {
	blocked := ExcludeBlocked(requester, cols...)
	if blocked == nil {
		return nil
	}
	return sq.And{blocked, ExcludeMuted(requester, cols...)}
}
