package repository

import (
	"context"
	"database/sql"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
)

// DB はsqlx.DBにX-Rayのサブセグメントを付与するラッパーです
type DB struct {
	*sqlx.DB
}

// NewDB はsqlx.DBをラップします
func NewDB(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// GetContext wraps sqlx.DB.GetContext with X-Ray tracing
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := beginQuerySegment(ctx, "DB.Get", query)
	err := db.DB.GetContext(ctx, dest, query, args...)
	utils.CloseSegment(seg, ignoreNoRows(err))
	return err
}

// SelectContext wraps sqlx.DB.SelectContext with X-Ray tracing
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := beginQuerySegment(ctx, "DB.Select", query)
	err := db.DB.SelectContext(ctx, dest, query, args...)
	utils.CloseSegment(seg, err)
	return err
}

// ExecContext wraps sqlx.DB.ExecContext with X-Ray tracing
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, seg := beginQuerySegment(ctx, "DB.Exec", query)
	result, err := db.DB.ExecContext(ctx, query, args...)
	utils.CloseSegment(seg, err)
	return result, err
}

func beginQuerySegment(ctx context.Context, name, query string) (context.Context, *xray.Segment) {
	ctx, seg := utils.BeginSubsegment(ctx, name)
	// クエリをメタデータとして追加
	utils.AddMetadata(seg, "query", query)
	return ctx, seg
}

// 0件はトレース上のエラーとして扱わない
func ignoreNoRows(err error) error {
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}
