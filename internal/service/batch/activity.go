package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/metrics"
	"github.com/uma-arai/sbcntr-booking/internal/model"
)

// ActivityLister は当日のチェックイン・チェックアウト対象の予約を返します
// booking.BookingServiceが満たします
type ActivityLister interface {
	ListTodayActivity(ctx context.Context) ([]model.Activity, error)
}

// TaskNotifier はStep Functionsへタスクの結果を通知します。*sfn.Clientが満たします
type TaskNotifier interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// ActivityReport はStep Functionsへ返す出力です
type ActivityReport struct {
	Date          string               `json:"date"`
	CheckIns      int                  `json:"check_ins"`
	CheckOuts     int                  `json:"check_outs"`
	Notifications []model.Notification `json:"notifications"`
}

// ActivityBatchService は当日のチェックイン・チェックアウトを集計して通知するバッチ処理を担当します
type ActivityBatchService struct {
	bookings  ActivityLister
	sfnClient TaskNotifier
	cfg       *config.Config
	clock     clock.Clock
}

// NewActivityBatchService は新しいActivityBatchServiceを作成します
// sfnClientがnilの場合はStep Functionsへの通知を行いません
func NewActivityBatchService(cfg *config.Config, bookings ActivityLister, sfnClient TaskNotifier, c clock.Clock) *ActivityBatchService {
	if c == nil {
		c = clock.System{}
	}
	return &ActivityBatchService{
		bookings:  bookings,
		sfnClient: sfnClient,
		cfg:       cfg,
		clock:     c,
	}
}

// Run はアクティビティバッチ処理を実行します
func (s *ActivityBatchService) Run(ctx context.Context) (err error) {
	// X-Rayセグメントの作成
	ctx, seg := utils.BeginSubsegment(ctx, "ActivityBatchService.Run")
	defer func() { utils.CloseSegment(seg, err) }()

	startTime := time.Now()

	report, err := s.buildReport(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to build activity report: %w", err))
	}

	// 結果を通知
	if err := s.sendTaskSuccess(ctx, report); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	utils.AddMetadata(seg, "duration", duration.String())
	utils.AddMetadata(seg, "check_ins", report.CheckIns)
	utils.AddMetadata(seg, "check_outs", report.CheckOuts)

	log.Info().
		Str("date", report.Date).
		Int("check_ins", report.CheckIns).
		Int("check_outs", report.CheckOuts).
		Dur("duration", duration).
		Msg("activity batch process completed successfully")
	return nil
}

// buildReport は当日のアクティビティから通知を作成します
func (s *ActivityBatchService) buildReport(ctx context.Context) (*ActivityReport, error) {
	activities, err := s.bookings.ListTodayActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's activity: %w", err)
	}

	log.Info().Int("count", len(activities)).Msg("found today's activity")

	now := s.clock.Now().UTC()
	report := &ActivityReport{
		Date:          clock.Today(s.clock).Format(time.DateOnly),
		Notifications: make([]model.Notification, 0, len(activities)),
	}
	for _, a := range activities {
		n, err := model.NewActivityNotification(a, now)
		if err != nil {
			// 取得後に状態が変わった予約は通知しない
			if errors.Is(err, model.ErrNoActivity) {
				log.Warn().Err(err).Int64("booking_id", a.ID).Msg("skipping booking")
				continue
			}
			return nil, err
		}

		switch n.Type {
		case model.NotificationTypeCheckIn:
			report.CheckIns++
		case model.NotificationTypeCheckOut:
			report.CheckOuts++
		}
		metrics.RecordActivityNotification(string(n.Type))
		report.Notifications = append(report.Notifications, n)
	}

	return report, nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知します
func (s *ActivityBatchService) sendTaskSuccess(ctx context.Context, report *ActivityReport) error {
	// ローカルの場合はStep Functionsの処理をスキップ
	if s.cfg.IsLocal() || s.sfnClient == nil {
		log.Info().Msg("local environment detected, skipping step functions task success notification")
		return nil
	}

	output, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal activity report: %w", err)
	}

	// タスクトークンを設定から取得
	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return errors.New("SFN_TASK_TOKEN is not set in config")
	}

	input := &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	}
	if _, err := s.sfnClient.SendTaskSuccess(ctx, input); err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	log.Info().RawJSON("output", output).Msg("successfully sent task success")
	return nil
}

// SendTaskFailure は、Step Functionsへタスクの失敗を通知します
func (s *ActivityBatchService) SendTaskFailure(ctx context.Context, cause error) error {
	// ローカル環境以外の場合のみStep Functionsのエラー通知を行う
	if s.cfg.IsLocal() || s.sfnClient == nil {
		return nil
	}

	input := &sfn.SendTaskFailureInput{
		TaskToken: aws.String(s.cfg.SFN.TaskToken),
		Error:     aws.String("Batch process failed"),
	}
	if cause != nil {
		// スタックトレースを除いた先頭行のみ送る
		msg, _, _ := strings.Cut(cause.Error(), "\n")
		input.Cause = aws.String(msg)
	}

	if _, err := s.sfnClient.SendTaskFailure(ctx, input); err != nil {
		return fmt.Errorf("failed to send task failure: %w", err)
	}
	return nil
}
