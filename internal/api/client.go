package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/dailyq/internal/model"
)

const userAgent = "DailyQ-Go/1.0"

// maxResponseSize はレスポンス本文の最大サイズ（5MB）。
const maxResponseSize = 5 * 1024 * 1024

// Tokens はクライアントが参照・更新するトークンの保管先。session.TokenStoreが実装する。
type Tokens interface {
	AccessTokenSource
	TokenStore
}

// Client はDailyQ APIのクライアント。
// 全てのリクエストはNewTransportで構築したチェーンを通り、
// トークン付与・401時のトークン更新・レート制限・エンドポイントログが適用される。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。トークン更新にはClient自身のRefreshTokenを使う。
func NewClient(baseURL string, tokens Tokens, cfg TransportConfig, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
	cfg.Tokens = tokens
	cfg.Refresher = c
	cfg.Logger = logger
	c.httpClient = &http.Client{Transport: NewTransport(cfg)}
	return c
}

// --- 認証 ---

// Login はIDとパスワードでトークンを発行する。AuthNoneで送信する。
func (c *Client) Login(ctx context.Context, uid, password string) (model.AuthToken, error) {
	form := url.Values{}
	form.Set("username", uid)
	form.Set("password", password)
	form.Set("grant_type", "password")

	var token model.AuthToken
	if err := c.doForm(WithAuthRequirement(ctx, model.AuthNone), http.MethodPost, "/v2/token", form, &token); err != nil {
		return model.AuthToken{}, err
	}
	return token, nil
}

// RefreshToken はリフレッシュトークンで新しいトークンペアを発行する。AuthNoneで送信する。
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (model.AuthToken, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	var token model.AuthToken
	if err := c.doForm(WithAuthRequirement(ctx, model.AuthNone), http.MethodPost, "/v2/token", form, &token); err != nil {
		return model.AuthToken{}, err
	}
	return token, nil
}

// RegisterPushToken はプッシュ通知用トークンをサーバーに登録する。
func (c *Client) RegisterPushToken(ctx context.Context, pushToken string) error {
	form := url.Values{}
	form.Set("token", pushToken)
	return c.doForm(ctx, http.MethodPost, "/v2/user/push-tokens", form, nil)
}

// --- 質問 ---

// GetQuestions はfromDate以前の質問を新しい順に最大pageSize件取得する。
func (c *Client) GetQuestions(ctx context.Context, fromDate model.Date, pageSize int) ([]model.Question, error) {
	q := url.Values{}
	q.Set("from_date", fromDate.String())
	q.Set("page_size", strconv.Itoa(pageSize))

	var questions []model.Question
	if err := c.doJSON(ctx, http.MethodGet, "/v2/questions", q, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetQuestion は指定日の質問を取得する。存在しない場合はnilを返す。
func (c *Client) GetQuestion(ctx context.Context, qid model.Date) (*model.Question, error) {
	var question model.Question
	err := c.doJSON(ctx, http.MethodGet, "/v2/questions/"+qid.String(), nil, &question)
	if StatusCodeOf(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// --- 回答 ---

// GetAnswers は質問に対する全ての回答を取得する。
func (c *Client) GetAnswers(ctx context.Context, qid model.Date) ([]model.Answer, error) {
	var answers []model.Answer
	if err := c.doJSON(ctx, http.MethodGet, answersPath(qid), nil, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// GetAnswer は指定ユーザーの回答を取得する。未回答の場合はnilを返す。
func (c *Client) GetAnswer(ctx context.Context, qid model.Date, uid string) (*model.Answer, error) {
	var answer model.Answer
	err := c.doJSON(ctx, http.MethodGet, answerPath(qid, uid), nil, &answer)
	if StatusCodeOf(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// WriteAnswer は回答を新規に投稿する。textとphotoは空文字なら送信しない。
func (c *Client) WriteAnswer(ctx context.Context, qid model.Date, text, photo string) (*model.Answer, error) {
	var answer model.Answer
	if err := c.doForm(ctx, http.MethodPost, answersPath(qid), answerForm(text, photo, ""), &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// EditAnswer は指定ユーザーの回答を更新する。
func (c *Client) EditAnswer(ctx context.Context, qid model.Date, uid, text, photo string) (*model.Answer, error) {
	var answer model.Answer
	if err := c.doForm(ctx, http.MethodPut, answerPath(qid, uid), answerForm(text, photo, uid), &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// DeleteAnswer は指定ユーザーの回答を削除する。
func (c *Client) DeleteAnswer(ctx context.Context, qid model.Date, uid string) error {
	return c.doJSON(ctx, http.MethodDelete, answerPath(qid, uid), nil, nil)
}

// UploadImage は画像をmultipart/form-dataでアップロードし、公開URLを返す。
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, image io.Reader) (*model.Image, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗しました: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗しました: %w", err)
	}

	var img model.Image
	if err := c.do(ctx, http.MethodPost, "/v2/images", nil, buf.Bytes(), mw.FormDataContentType(), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// --- ユーザー ---

// GetUser はユーザーのプロフィールを取得する。存在しない場合はnilを返す。
func (c *Client) GetUser(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "/v2/users/"+url.PathEscape(uid), nil, &user)
	if StatusCodeOf(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Follow は指定ユーザーをフォローする。
func (c *Client) Follow(ctx context.Context, uid string) error {
	return c.doJSON(ctx, http.MethodPost, "/v2/user/following/"+url.PathEscape(uid), nil, nil)
}

// Unfollow は指定ユーザーのフォローを解除する。
func (c *Client) Unfollow(ctx context.Context, uid string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v2/user/following/"+url.PathEscape(uid), nil, nil)
}

// GetUserAnswers はユーザーの回答をfromDate以前から新しい順に取得する。
// fromDateがnilの場合はサーバーが最新から返す。
func (c *Client) GetUserAnswers(ctx context.Context, uid string, fromDate *model.Date) ([]model.QuestionAndAnswer, error) {
	q := url.Values{}
	if fromDate != nil {
		q.Set("from_date", fromDate.String())
	}

	var answers []model.QuestionAndAnswer
	if err := c.doJSON(ctx, http.MethodGet, "/v2/users/"+url.PathEscape(uid)+"/answers", q, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// --- 共通処理 ---

func answersPath(qid model.Date) string {
	return "/v2/questions/" + qid.String() + "/answers"
}

func answerPath(qid model.Date, uid string) string {
	return answersPath(qid) + "/" + url.PathEscape(uid)
}

func answerForm(text, photo, uid string) url.Values {
	form := url.Values{}
	if text != "" {
		form.Set("text", text)
	}
	if photo != "" {
		form.Set("photo", photo)
	}
	if uid != "" {
		form.Set("uid", uid)
	}
	return form
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	return c.do(ctx, method, path, query, nil, "", out)
}

func (c *Client) doForm(ctx context.Context, method, path string, form url.Values, out any) error {
	return c.do(ctx, method, path, nil, []byte(form.Encode()), "application/x-www-form-urlencoded", out)
}

// do はリクエストを送信し、2xxの場合はJSON本文をoutにデコードする。
// 本文はbytes.Readerで渡すため、トークン更新後の再送でも再生できる。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("DailyQ APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("endpoint", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		c.logger.Warn("DailyQ APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("endpoint", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("DailyQ APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", path),
			slog.String("error", err.Error()),
		)
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}
