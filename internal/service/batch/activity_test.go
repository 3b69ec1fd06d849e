package batch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/model"
)

// MockActivityLister はテスト用のモックです
type MockActivityLister struct {
	called     bool
	activities []model.Activity
	err        error
}

func (m *MockActivityLister) ListTodayActivity(ctx context.Context) ([]model.Activity, error) {
	m.called = true
	return m.activities, m.err
}

// MockTaskNotifier はテスト用のStep Functionsクライアントです
type MockTaskNotifier struct {
	successInput *sfn.SendTaskSuccessInput
	failureInput *sfn.SendTaskFailureInput
	err          error
}

func (m *MockTaskNotifier) SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	m.successInput = params
	return &sfn.SendTaskSuccessOutput{}, m.err
}

func (m *MockTaskNotifier) SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	m.failureInput = params
	return &sfn.SendTaskFailureOutput{}, m.err
}

var testNow = clock.Fixed(time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC))

func activity(id int64, status model.BookingStatus, name string) model.Activity {
	today := clock.Today(testNow)
	return model.Activity{
		Booking: model.Booking{
			ID:        id,
			Status:    status,
			StartDate: today,
			EndDate:   today,
			NumGuests: 2,
			NumNights: 3,
		},
		Guest: &model.GuestOrigin{FullName: name, Nationality: "Japan", CountryFlag: "https://flagcdn.com/jp.svg"},
	}
}

func newTestConfig(env string) *config.Config {
	cfg := &config.Config{Env: env}
	cfg.SFN.TaskToken = "task-token"
	return cfg
}

func TestActivityBatchService_Run(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestActivityBatchService_Run")
	defer seg.Close(nil)

	tests := []struct {
		name          string
		activities    []model.Activity
		wantCheckIns  int
		wantCheckOuts int
	}{
		{
			name:       "0件のアクティビティを正常に処理",
			activities: []model.Activity{},
		},
		{
			name: "チェックインとチェックアウトを集計",
			activities: []model.Activity{
				activity(1, model.BookingStatusUnconfirmed, "山田太郎"),
				activity(2, model.BookingStatusCheckedIn, "佐藤花子"),
				activity(3, model.BookingStatusUnconfirmed, "鈴木一郎"),
			},
			wantCheckIns:  2,
			wantCheckOuts: 1,
		},
		{
			name: "チェックアウト済みの予約は通知しない",
			activities: []model.Activity{
				activity(1, model.BookingStatusCheckedOut, "山田太郎"),
				activity(2, model.BookingStatusCheckedIn, "佐藤花子"),
			},
			wantCheckOuts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &MockActivityLister{activities: tt.activities}
			notifier := &MockTaskNotifier{}
			service := NewActivityBatchService(newTestConfig(""), lister, notifier, testNow)

			if err := service.Run(ctx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !lister.called {
				t.Error("ListTodayActivity was not called")
			}
			if notifier.successInput == nil {
				t.Fatal("SendTaskSuccess was not called")
			}
			if got := aws.ToString(notifier.successInput.TaskToken); got != "task-token" {
				t.Errorf("TaskToken = %q, want %q", got, "task-token")
			}

			var report ActivityReport
			if err := json.Unmarshal([]byte(aws.ToString(notifier.successInput.Output)), &report); err != nil {
				t.Fatalf("failed to unmarshal output: %v", err)
			}
			if report.Date != "2026-10-18" {
				t.Errorf("Date = %q, want 2026-10-18", report.Date)
			}
			if report.CheckIns != tt.wantCheckIns || report.CheckOuts != tt.wantCheckOuts {
				t.Errorf("CheckIns/CheckOuts = %d/%d, want %d/%d", report.CheckIns, report.CheckOuts, tt.wantCheckIns, tt.wantCheckOuts)
			}
			if len(report.Notifications) != tt.wantCheckIns+tt.wantCheckOuts {
				t.Errorf("Expected %d notifications, got %d", tt.wantCheckIns+tt.wantCheckOuts, len(report.Notifications))
			}
		})
	}
}

func TestActivityBatchService_RunLocal(t *testing.T) {
	lister := &MockActivityLister{activities: []model.Activity{activity(1, model.BookingStatusUnconfirmed, "山田太郎")}}
	notifier := &MockTaskNotifier{}
	service := NewActivityBatchService(newTestConfig("LOCAL"), lister, notifier, testNow)

	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if notifier.successInput != nil {
		t.Error("SendTaskSuccess should be skipped in the local environment")
	}

	// クライアントがない場合もスキップする
	service = NewActivityBatchService(newTestConfig(""), lister, nil, testNow)
	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("Run() without client error = %v", err)
	}
}

func TestActivityBatchService_RunErrors(t *testing.T) {
	t.Run("アクティビティの取得に失敗", func(t *testing.T) {
		lister := &MockActivityLister{err: errors.New("bookings could not be loaded")}
		notifier := &MockTaskNotifier{}
		service := NewActivityBatchService(newTestConfig(""), lister, notifier, testNow)

		err := service.Run(context.Background())
		if err == nil {
			t.Fatal("Run() error = nil, want error")
		}
		if !strings.Contains(err.Error(), "bookings could not be loaded") {
			t.Errorf("Run() error = %v", err)
		}
		if notifier.successInput != nil {
			t.Error("SendTaskSuccess should not be called on failure")
		}
	})

	t.Run("タスクトークンがない", func(t *testing.T) {
		cfg := newTestConfig("")
		cfg.SFN.TaskToken = ""
		service := NewActivityBatchService(cfg, &MockActivityLister{}, &MockTaskNotifier{}, testNow)

		if err := service.Run(context.Background()); err == nil {
			t.Error("Run() error = nil, want error")
		}
	})

	t.Run("Step Functionsへの通知に失敗", func(t *testing.T) {
		notifier := &MockTaskNotifier{err: errors.New("throttled")}
		service := NewActivityBatchService(newTestConfig(""), &MockActivityLister{}, notifier, testNow)

		err := service.Run(context.Background())
		if err == nil || !strings.Contains(err.Error(), "throttled") {
			t.Errorf("Run() error = %v, want throttled", err)
		}
	})
}

func TestActivityBatchService_SendTaskFailure(t *testing.T) {
	notifier := &MockTaskNotifier{}
	service := NewActivityBatchService(newTestConfig(""), &MockActivityLister{}, notifier, testNow)

	cause := utils.GetStackWithError(errors.New("failed to build activity report"))
	if err := service.SendTaskFailure(context.Background(), cause); err != nil {
		t.Fatalf("SendTaskFailure() error = %v", err)
	}
	if notifier.failureInput == nil {
		t.Fatal("SendTaskFailure was not called")
	}
	if got := aws.ToString(notifier.failureInput.Cause); got != "failed to build activity report" {
		t.Errorf("Cause = %q", got)
	}

	local := &MockTaskNotifier{}
	service = NewActivityBatchService(newTestConfig("LOCAL"), &MockActivityLister{}, local, testNow)
	if err := service.SendTaskFailure(context.Background(), cause); err != nil {
		t.Fatalf("SendTaskFailure() error = %v", err)
	}
	if local.failureInput != nil {
		t.Error("SendTaskFailure should be skipped in the local environment")
	}
}
