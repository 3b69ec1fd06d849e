package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/repository"
	"github.com/uma-arai/sbcntr-booking/internal/service/booking"
)

const usage = `usage: bookings [flags] <command> [id]

commands:
  list          予約一覧 (--page, --filter-*, --sort)
  get <id>      予約の詳細
  sales         直近--last日間に作成された予約の売上
  stays         --since以降に開始した滞在
  today         当日のチェックイン・チェックアウト
  update <id>   予約の部分更新 (--status, --paid, --breakfast, ...)
  delete <id>   予約の削除

flags:
`

var errUsage = errors.New("invalid arguments")

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}

	flag.Int("page", 0, "ページ番号(1始まり)。0の場合は全件")
	flag.String("filter-field", "", "絞り込むカラム")
	flag.String("filter-value", "", "絞り込む値")
	flag.String("filter-method", "eq", "比較方法 (eq, neq, gt, gte, lt, lte)")
	flag.String("sort", "", "並び順 (例: startDate-desc)")
	flag.Int("last", 7, "salesで集計する日数")
	flag.String("since", "", "staysの開始日 (RFC3339または2006-01-02)")
	flag.String("status", "", "更新後のステータス")
	flag.Bool("paid", false, "支払い済みにする")
	flag.Bool("breakfast", false, "朝食ありにする")
	flag.Float64("extras-price", 0, "追加料金")
	flag.Float64("total-price", 0, "合計金額")
	flag.String("observations", "", "備考")
	flag.Duration("timeout", 30*time.Second, "処理のタイムアウト時間")
	flag.Parse()

	viper.SetEnvPrefix("SBCNTR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	utils.SetupLogger(cfg.LogLevel, cfg.IsLocal())

	store, closer, err := repository.OpenBookingStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open booking store")
	}
	defer closer.Close()

	svc := booking.NewBookingService(store, clock.System{}, cfg.PageSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = utils.RunWithTimeout(ctx, viper.GetDuration("timeout"), func(ctx context.Context) error {
		return run(ctx, svc, clock.System{}, viper.GetViper(), flag.Args(), os.Stdout)
	})
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		closer.Close()
		os.Exit(1)
	}
}

// run はコマンドを実行し、結果をJSONでoutに書き出します
func run(ctx context.Context, svc *booking.BookingService, c clock.Clock, v *viper.Viper, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: command is required", errUsage)
	}

	var result any
	switch cmd := args[0]; cmd {
	case "list":
		items, count, err := svc.ListBookings(ctx, listFilter(v), listSort(v), v.GetInt("page"))
		if err != nil {
			return err
		}
		result = struct {
			Bookings []model.BookingListItem `json:"bookings"`
			Count    int                     `json:"count"`
		}{items, count}
	case "get":
		id, err := bookingID(args)
		if err != nil {
			return err
		}
		if result, err = svc.GetBooking(ctx, id); err != nil {
			return err
		}
	case "sales":
		days := v.GetInt("last")
		if days <= 0 {
			return fmt.Errorf("%w: --last must be greater than zero", errUsage)
		}
		var err error
		if result, err = svc.ListBookingsCreatedAfter(ctx, c.Now().AddDate(0, 0, -days)); err != nil {
			return err
		}
	case "stays":
		var err error
		if result, err = svc.ListStaysStartingAfter(ctx, v.GetString("since")); err != nil {
			return err
		}
	case "today":
		var err error
		if result, err = svc.ListTodayActivity(ctx); err != nil {
			return err
		}
	case "update":
		id, err := bookingID(args)
		if err != nil {
			return err
		}
		if result, err = svc.UpdateBooking(ctx, id, bookingPatch(v)); err != nil {
			return err
		}
	case "delete":
		id, err := bookingID(args)
		if err != nil {
			return err
		}
		if err := svc.DeleteBooking(ctx, id); err != nil {
			return err
		}
		result = map[string]int64{"deleted": id}
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func bookingID(args []string) (int64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s requires a booking id", errUsage, args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid booking id %q", errUsage, args[1])
	}
	return id, nil
}

func listFilter(v *viper.Viper) *booking.Filter {
	field := v.GetString("filter-field")
	if field == "" {
		return nil
	}
	return &booking.Filter{
		Field:  field,
		Value:  v.GetString("filter-value"),
		Method: v.GetString("filter-method"),
	}
}

// listSort は"startDate-desc"形式の並び順を解釈します
func listSort(v *viper.Viper) *booking.SortBy {
	s := v.GetString("sort")
	if s == "" {
		return nil
	}
	field, dir, _ := strings.Cut(s, "-")
	return &booking.SortBy{Field: field, Direction: dir}
}

// bookingPatch は指定されたフラグ・環境変数のみを更新対象にします
func bookingPatch(v *viper.Viper) model.BookingPatch {
	var p model.BookingPatch
	if v.IsSet("status") {
		status := model.BookingStatus(v.GetString("status"))
		p.Status = &status
	}
	if v.IsSet("paid") {
		paid := v.GetBool("paid")
		p.IsPaid = &paid
	}
	if v.IsSet("breakfast") {
		breakfast := v.GetBool("breakfast")
		p.HasBreakfast = &breakfast
	}
	if v.IsSet("extras-price") {
		price := v.GetFloat64("extras-price")
		p.ExtrasPrice = &price
	}
	if v.IsSet("total-price") {
		price := v.GetFloat64("total-price")
		p.TotalPrice = &price
	}
	if v.IsSet("observations") {
		obs := v.GetString("observations")
		p.Observations = &obs
	}
	return p
}
