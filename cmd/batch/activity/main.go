package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/metrics"
	"github.com/uma-arai/sbcntr-booking/internal/repository"
	"github.com/uma-arai/sbcntr-booking/internal/service/batch"
	"github.com/uma-arai/sbcntr-booking/internal/service/booking"
)

const (
	projectName = "sbcntr-booking-activity"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	local := os.Getenv("ENV") == "LOCAL"
	taskToken := "DUMMY_TASK_TOKEN"
	if !local {
		if flag.NArg() == 0 {
			log.Fatal().Msg("task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("failed to load config")
	}
	utils.SetupLogger(cfg.LogLevel, cfg.IsLocal())

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Warn().Err(err).Msg("failed to configure X-Ray")
			// X-Ray設定失敗時はデフォルトの設定を使用
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatal().Err(configErr).Msg("failed to configure default X-Ray settings")
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	// Step Functionsクライアントの初期化
	var notifier batch.TaskNotifier
	if !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal().Err(utils.GetStackWithError(err)).Msg("failed to load AWS config")
		}
		notifier = sfn.NewFromConfig(awsCfg)
	}

	// ストアとサービスの初期化
	store, closer, err := repository.OpenBookingStore(cfg)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("failed to open booking store")
	}
	defer closer.Close()

	bookings := booking.NewBookingService(store, clock.System{}, cfg.PageSize)
	service := batch.NewActivityBatchService(cfg, bookings, notifier, clock.System{})

	// コンテキストの作成
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// X-Rayセグメントの作成
	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		// セグメントにメタデータを追加
		utils.AddMetadata(seg, "task_token", taskToken)
		utils.AddMetadata(seg, "timeout", timeout.String())
	}

	// シグナルハンドリングの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// バッチ処理の実行
	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	// シグナルまたはエラーの待機
	select {
	case sig := <-sigChan:
		log.Warn().Str("signal", sig.String()).Msg("received signal")
		cancel()
	case err := <-errChan:
		pushMetrics(cfg)
		if err != nil {
			log.Error().Err(err).Msg("batch process failed")

			// タイムアウト後でも通知できるよう新しいコンテキストを使う
			if notifyErr := service.SendTaskFailure(context.Background(), err); notifyErr != nil {
				log.Error().Err(utils.GetStackWithError(notifyErr)).Msg("failed to send task failure")
			}

			closer.Close()
			os.Exit(1)
		}
		log.Info().Msg("batch process completed successfully")
	}
}

func pushMetrics(cfg *config.Config) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(cfg.PushgatewayURL, projectName); err != nil {
		log.Warn().Err(err).Msg("failed to push metrics")
	}
}
