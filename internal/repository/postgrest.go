package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

const (
	restBookingPath = "/rest/v1/booking"

	selectBookingList   = "id,created_at,startDate,endDate,numNights,numGuests,status,totalPrice,cabins(name),guests!booking_guestId_fkey(fullName,email)"
	selectBookingDetail = "*,cabins(*),guests!booking_guestId_fkey(*)"
	selectBookingSales  = "created_at,totalPrice,extrasPrice"
	selectStays         = "*,guests!booking_guestId_fkey(fullName)"
	selectActivity      = "*,guests!booking_guestId_fkey(fullName,nationality,countryFlag)"

	mediaTypeJSON   = "application/json"
	mediaTypeObject = "application/vnd.pgrst.object+json"

	// 単一行の取得で0件または複数件だった場合のエラーコード
	codeSingularity = "PGRST116"
)

// APIError はREST APIが返したエラーです
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("rest api error (status %d, code %s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("rest api error (status %d): %s", e.Status, msg)
}

// RestBookingStore はPostgREST互換のREST API(ホスティングされたバックエンド)を利用するBookingStoreの実装です
type RestBookingStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRestBookingStore は新しいRestBookingStoreを作成します
// clientがnilの場合はX-Rayでトレースされるクライアントを作成します
func NewRestBookingStore(cfg config.RESTConfig, client *http.Client) *RestBookingStore {
	if client == nil {
		client = xray.Client(&http.Client{Timeout: cfg.Timeout})
	}
	return &RestBookingStore{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

type restRequest struct {
	method string
	params url.Values
	header http.Header
	body   any
}

type restResponse struct {
	status int
	header http.Header
	body   []byte
}

// ListBookings は一覧用の予約と総件数を取得します
func (s *RestBookingStore) ListBookings(ctx context.Context, q query.Query) (items []model.BookingListItem, count int, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListBookings")
	defer func() { utils.CloseSegment(seg, err) }()

	req, err := newRestQuery(selectBookingList, q)
	if err != nil {
		return nil, 0, err
	}
	req.header.Set("Prefer", "count=exact")

	res, err := s.do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if count, err = parseContentRange(res.header.Get("Content-Range")); err != nil {
		return nil, 0, err
	}
	// 範囲が総件数を超えた場合は空のページとして扱う
	if res.status == http.StatusRequestedRangeNotSatisfiable {
		return []model.BookingListItem{}, count, nil
	}

	items = []model.BookingListItem{}
	if err = decodeBody(res, &items); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

// GetBooking は主キーで予約を1件取得します
func (s *RestBookingStore) GetBooking(ctx context.Context, id int64) (detail *model.BookingDetail, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.GetBooking")
	defer func() { utils.CloseSegment(seg, ignoreNotFound(err)) }()

	req := restRequest{
		method: http.MethodGet,
		params: url.Values{"select": {selectBookingDetail}, "id": {"eq." + strconv.FormatInt(id, 10)}},
		header: http.Header{"Accept": {mediaTypeObject}},
	}

	res, err := s.do(ctx, req)
	if err != nil {
		return nil, notFoundOrErr(id, err)
	}

	detail = &model.BookingDetail{}
	if err = decodeBody(res, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListBookingSales は売上集計用の列を取得します
func (s *RestBookingStore) ListBookingSales(ctx context.Context, q query.Query) (sales []model.BookingSale, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListBookingSales")
	defer func() { utils.CloseSegment(seg, err) }()

	sales = []model.BookingSale{}
	err = s.list(ctx, selectBookingSales, q, &sales)
	return sales, err
}

// ListStays はゲスト名付きの予約を取得します
func (s *RestBookingStore) ListStays(ctx context.Context, q query.Query) (stays []model.Stay, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListStays")
	defer func() { utils.CloseSegment(seg, err) }()

	stays = []model.Stay{}
	err = s.list(ctx, selectStays, q, &stays)
	return stays, err
}

// ListActivity はゲストの国籍情報付きの予約を取得します
func (s *RestBookingStore) ListActivity(ctx context.Context, q query.Query) (activities []model.Activity, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListActivity")
	defer func() { utils.CloseSegment(seg, err) }()

	activities = []model.Activity{}
	err = s.list(ctx, selectActivity, q, &activities)
	return activities, err
}

func (s *RestBookingStore) list(ctx context.Context, sel string, q query.Query, dest any) error {
	req, err := newRestQuery(sel, q)
	if err != nil {
		return err
	}
	res, err := s.do(ctx, req)
	if err != nil {
		return err
	}
	if res.status == http.StatusRequestedRangeNotSatisfiable {
		return nil
	}
	return decodeBody(res, dest)
}

// UpdateBooking は指定されたフィールドのみ更新し、更新後の行を返します
func (s *RestBookingStore) UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) (booking *model.Booking, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.UpdateBooking")
	defer func() { utils.CloseSegment(seg, err) }()

	values := patch.Values()
	if len(values) == 0 {
		return nil, ErrEmptyPatch
	}
	body := make(map[string]any, len(values))
	for _, v := range values {
		body[v.Field] = v.Value
	}

	req := restRequest{
		method: http.MethodPatch,
		params: url.Values{"select": {"*"}, "id": {"eq." + strconv.FormatInt(id, 10)}},
		header: http.Header{
			"Accept": {mediaTypeObject},
			"Prefer": {"return=representation"},
		},
		body: body,
	}

	res, err := s.do(ctx, req)
	if err != nil {
		return nil, notFoundOrErr(id, err)
	}

	booking = &model.Booking{}
	if err = decodeBody(res, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// DeleteBooking は予約を削除します
func (s *RestBookingStore) DeleteBooking(ctx context.Context, id int64) (err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.DeleteBooking")
	defer func() { utils.CloseSegment(seg, err) }()

	req := restRequest{
		method: http.MethodDelete,
		params: url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}},
		header: http.Header{},
	}
	_, err = s.do(ctx, req)
	return err
}

func (s *RestBookingStore) do(ctx context.Context, r restRequest) (*restResponse, error) {
	u := s.baseURL + restBookingPath
	if len(r.params) > 0 {
		u += "?" + r.params.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", mediaTypeJSON)
	}
	if body != nil {
		req.Header.Set("Content-Type", mediaTypeJSON)
	}

	log.Debug().Str("method", r.method).Str("url", u).Msg("rest request")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	res := &restResponse{status: resp.StatusCode, header: resp.Header, body: b}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return res, nil
	}
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && r.header.Get("Range") != "" {
		return res, nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if len(b) > 0 {
		if err := json.Unmarshal(b, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(b))
		}
	}
	return nil, apiErr
}

func decodeBody(res *restResponse, dest any) error {
	if err := json.Unmarshal(res.body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// notFoundOrErr は単一行の要求で行が特定できなかったエラーをErrRowNotFoundに変換します
func notFoundOrErr(id int64, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Code == codeSingularity || apiErr.Status == http.StatusNotAcceptable) {
		return fmt.Errorf("booking %d: %w: %s", id, ErrRowNotFound, apiErr.Message)
	}
	return err
}

// newRestQuery は問い合わせをクエリパラメータとヘッダに変換します
func newRestQuery(sel string, q query.Query) (restRequest, error) {
	if err := validateFields(q); err != nil {
		return restRequest{}, err
	}

	params := url.Values{"select": {sel}}
	if err := addFilterParams(params, q.Where); err != nil {
		return restRequest{}, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "desc"
			if o.Ascending {
				dir = "asc"
			}
			parts[i] = o.Field + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}

	header := http.Header{}
	if q.Range != nil {
		header.Set("Range-Unit", "items")
		header.Set("Range", fmt.Sprintf("%d-%d", q.Range.From, q.Range.To))
	}

	return restRequest{method: http.MethodGet, params: params, header: header}, nil
}

// addFilterParams は条件をフィルタパラメータとして追加します
// 最上位のAndは個別のパラメータに展開し、Orは論理式(or=(...))として表現します
func addFilterParams(params url.Values, p query.Predicate) error {
	switch v := p.(type) {
	case nil:
		return nil
	case query.Compare:
		op, err := filterOperator(v, false)
		if err != nil {
			return err
		}
		params.Add(v.Field, op)
		return nil
	case query.And:
		for _, c := range v {
			if err := addFilterParams(params, c); err != nil {
				return err
			}
		}
		return nil
	case query.Or:
		expr, err := logicTree(v)
		if err != nil {
			return err
		}
		params.Add("or", expr)
		return nil
	default:
		return fmt.Errorf("%w: %T", query.ErrUnsupportedNode, p)
	}
}

// logicTree は論理式のオペランドを括弧付きで返します
func logicTree(ps []query.Predicate) (string, error) {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		s, err := logicOperand(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

func logicOperand(p query.Predicate) (string, error) {
	switch v := p.(type) {
	case query.Compare:
		op, err := filterOperator(v, true)
		if err != nil {
			return "", err
		}
		return v.Field + "." + op, nil
	case query.And:
		tree, err := logicTree(v)
		if err != nil {
			return "", err
		}
		return "and" + tree, nil
	case query.Or:
		tree, err := logicTree(v)
		if err != nil {
			return "", err
		}
		return "or" + tree, nil
	default:
		return "", fmt.Errorf("%w: %T", query.ErrUnsupportedNode, p)
	}
}

// filterOperator は「演算子.値」の形式を返します。論理式の中では予約文字を含む値を引用符で囲みます
func filterOperator(c query.Compare, inTree bool) (string, error) {
	if _, err := query.ParseOp(string(c.Op)); err != nil || c.Op == "" {
		return "", fmt.Errorf("%w: %q", query.ErrUnknownOp, c.Op)
	}
	nullTest, err := c.IsNullTest()
	if err != nil {
		return "", err
	}
	if nullTest {
		if c.Op == query.OpEq {
			return "is.null", nil
		}
		return "not.is.null", nil
	}
	value := formatFilterValue(c.Value)
	if inTree {
		value = quoteFilterValue(value)
	}
	return string(c.Op) + "." + value, nil
}

func formatFilterValue(v any) string {
	v = query.Deref(v)
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	case model.BookingStatus:
		return string(t)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func quoteFilterValue(s string) string {
	if !strings.ContainsAny(s, ",.:()\"\\ ") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// parseContentRange はContent-Range(例: 0-9/24、*/0)から総件数を取り出します
func parseContentRange(v string) (int, error) {
	if v == "" {
		return 0, errors.New("missing content range header")
	}
	i := strings.LastIndex(v, "/")
	if i < 0 {
		return 0, fmt.Errorf("invalid content range %q", v)
	}
	total := v[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("content range %q has no total count", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid content range %q: %w", v, err)
	}
	return n, nil
}
