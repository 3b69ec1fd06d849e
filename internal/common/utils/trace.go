package utils

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog/log"
)

// BeginSubsegment は親セグメントがある場合のみサブセグメントを開始します
// 親セグメントがない場合(トレース無効時やテスト)はnilを返します
func BeginSubsegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	if xray.GetSegment(ctx) == nil {
		return ctx, nil
	}
	return xray.BeginSubsegment(ctx, name)
}

// CloseSegment はsegがnilでなければ閉じます
func CloseSegment(seg *xray.Segment, err error) {
	if seg == nil {
		return
	}
	seg.Close(err)
}

// AddMetadata はsegにメタデータを追加します。失敗してもログを出すのみです
func AddMetadata(seg *xray.Segment, key string, value any) {
	if seg == nil {
		return
	}
	if err := seg.AddMetadata(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to add metadata")
	}
}
