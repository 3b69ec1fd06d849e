package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout は処理が制限時間内に終わらなかったことを表します
var ErrTimeout = errors.New("process timed out")

// RunWithTimeout は指定されたタイムアウト時間内でfnを実行する
// タイムアウトを超えた場合は、コンテキストをキャンセルしてErrTimeoutを返す
// timeoutが0以下の場合は呼び出し元のコンテキストのみに従う
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		return ctx.Err()
	}
}
