// Package query は予約テーブルに対する検索条件を、バックエンドに依存しない形で表現します。
// 各ストアはこの式ツリーを自身の問い合わせ形式(SQL、REST APIのフィルタ構文など)に変換します。
package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Op は比較演算子を表します
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var (
	ErrUnknownOp = errors.New("unknown comparison operator")
	// ErrNullComparison はNULLをeq・neq以外で比較しようとしたことを表します
	ErrNullComparison = errors.New("null can only be compared with eq or neq")
)

// ParseOp は文字列から比較演算子を返します。空文字はeqとして扱います
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(s))); op {
	case "":
		return OpEq, nil
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}
}

// Predicate は検索条件の式ツリーです。Compare、And、Orのいずれかです
type Predicate interface {
	predicate()
}

// Compare はフィールドと値の比較です
type Compare struct {
	Field string
	Op    Op
	Value any
}

// IsNullTest はValueがNULL(nilまたはnilポインタ)との比較かを返します
// trueの場合、eqはIS NULL、neqはIS NOT NULLを意味します。それ以外の演算子はErrNullComparisonです
func (c Compare) IsNullTest() (bool, error) {
	if !isNil(c.Value) {
		return false, nil
	}
	switch c.Op {
	case OpEq, OpNeq:
		return true, nil
	}
	return false, fmt.Errorf("%w: %s %s null", ErrNullComparison, c.Field, c.Op)
}

// And は全ての条件を満たすことを表します。空の場合は常に真です
type And []Predicate

// Or はいずれかの条件を満たすことを表します。空の場合は常に偽です
type Or []Predicate

func (Compare) predicate() {}
func (And) predicate()     {}
func (Or) predicate()      {}

func Eq(field string, value any) Compare  { return Compare{Field: field, Op: OpEq, Value: value} }
func Gte(field string, value any) Compare { return Compare{Field: field, Op: OpGte, Value: value} }
func Lte(field string, value any) Compare { return Compare{Field: field, Op: OpLte, Value: value} }

// AllOf はnilを除いた条件のAndを返します。条件が1つならそれ自体を返します
func AllOf(ps ...Predicate) Predicate {
	out := compact(ps)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return And(out)
}

// AnyOf はnilを除いた条件のOrを返します。条件が1つならそれ自体を返します
func AnyOf(ps ...Predicate) Predicate {
	out := compact(ps)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return Or(out)
}

func compact(ps []Predicate) []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Order は並び順です
type Order struct {
	Field     string
	Ascending bool
}

// Range は取得する行の範囲です。FromとToはどちらも0始まりで、Toを含みます
type Range struct {
	From int
	To   int
}

// Limit は範囲に含まれる行数を返します
func (r Range) Limit() int {
	return r.To - r.From + 1
}

// PageRange は1始まりのページ番号とページサイズから範囲を計算します
// pageまたはsizeが0以下の場合はページングしないのでnilを返します
// intで表せないページは表せる最後のページに丸めます。結果は空になります
func PageRange(page, size int) *Range {
	if page <= 0 || size <= 0 {
		return nil
	}
	if page > math.MaxInt/size {
		return &Range{From: math.MaxInt - size + 1, To: math.MaxInt}
	}
	from := (page - 1) * size
	return &Range{From: from, To: from + size - 1}
}

// Query はストアに渡す問い合わせです
type Query struct {
	Where Predicate
	Order []Order
	Range *Range
}

// Fields は問い合わせが参照するフィールド名を重複なしで返します
func (q Query) Fields() []string {
	seen := make(map[string]struct{})
	var fields []string
	add := func(f string) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}

	Walk(q.Where, func(c Compare) { add(c.Field) })
	for _, o := range q.Order {
		add(o.Field)
	}
	return fields
}

// Walk は式ツリー内の全てのCompareに対してfnを呼び出します
func Walk(p Predicate, fn func(Compare)) {
	switch v := p.(type) {
	case Compare:
		fn(v)
	case And:
		for _, c := range v {
			Walk(c, fn)
		}
	case Or:
		for _, c := range v {
			Walk(c, fn)
		}
	}
}
