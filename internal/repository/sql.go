package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

var sqlOperators = map[query.Op]string{
	query.OpEq:  "=",
	query.OpNeq: "<>",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// sqlBuilder は式ツリーをプレースホルダ付きのSQLに変換します
// 値は全てargsに積まれ、SQL文字列には埋め込みません
type sqlBuilder struct {
	alias string
	args  []any
}

func newSQLBuilder(alias string) *sqlBuilder {
	return &sqlBuilder{alias: alias}
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) column(field string) string {
	return qualifiedColumn(b.alias, field)
}

func (b *sqlBuilder) predicate(p query.Predicate) (string, error) {
	switch v := p.(type) {
	case query.Compare:
		if !model.IsBookingColumn(v.Field) {
			return "", &FieldError{Field: v.Field}
		}
		op, ok := sqlOperators[v.Op]
		if !ok {
			return "", fmt.Errorf("%w: %q", query.ErrUnknownOp, v.Op)
		}
		nullTest, err := v.IsNullTest()
		if err != nil {
			return "", err
		}
		if nullTest {
			if v.Op == query.OpEq {
				return b.column(v.Field) + " IS NULL", nil
			}
			return b.column(v.Field) + " IS NOT NULL", nil
		}
		return fmt.Sprintf("%s %s %s", b.column(v.Field), op, b.arg(sqlValue(v.Value))), nil
	case query.And:
		return b.join(v, " AND ", "TRUE")
	case query.Or:
		return b.join(v, " OR ", "FALSE")
	default:
		return "", fmt.Errorf("%w: %T", query.ErrUnsupportedNode, p)
	}
}

func (b *sqlBuilder) join(ps []query.Predicate, sep, empty string) (string, error) {
	if len(ps) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		s, err := b.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// where はWHERE句を返します。条件がない場合は空文字です
func (b *sqlBuilder) where(p query.Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	cond, err := b.predicate(p)
	if err != nil {
		return "", err
	}
	return "\nWHERE " + cond, nil
}

func (b *sqlBuilder) orderBy(orders []query.Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if !model.IsBookingColumn(o.Field) {
			return "", &FieldError{Field: o.Field}
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		parts = append(parts, b.column(o.Field)+" "+dir)
	}
	return "\nORDER BY " + strings.Join(parts, ", "), nil
}

func (b *sqlBuilder) limit(r *query.Range) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("\nLIMIT %s OFFSET %s", b.arg(r.Limit()), b.arg(r.From))
}

// selectStatement はfrom(SELECT句とFROM句)に条件・並び順・範囲を付与します
func (b *sqlBuilder) selectStatement(from string, q query.Query) (string, error) {
	where, err := b.where(q.Where)
	if err != nil {
		return "", err
	}
	order, err := b.orderBy(q.Order)
	if err != nil {
		return "", err
	}
	return from + where + order + b.limit(q.Range), nil
}

func qualifiedColumn(alias, field string) string {
	if alias == "" {
		return pq.QuoteIdentifier(field)
	}
	return alias + "." + pq.QuoteIdentifier(field)
}

// bookingColumnList はbookingテーブルの全カラムをmodel.BookingColumnsの順で列挙します
func bookingColumnList(alias string) string {
	cols := make([]string, len(model.BookingColumns))
	for i, c := range model.BookingColumns {
		cols[i] = qualifiedColumn(alias, c)
	}
	return strings.Join(cols, ", ")
}

// 名前付きの文字列型はドライバに渡す前に素の文字列にする
func sqlValue(v any) any {
	v = query.Deref(v)
	if s, ok := v.(model.BookingStatus); ok {
		return string(s)
	}
	return v
}
