package opentdb

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"

	"trivia-quiz/internal/domain"
)

const (
	DefaultBaseURL = "https://opentdb.com"

	questionsPath = "/api.php"
	tokenPath     = "/api_token.php"

	defaultTimeout = 10 * time.Second
)

type tokenResponse struct {
	ResponseCode    int    `json:"response_code"`
	ResponseMessage string `json:"response_message"`
	Token           string `json:"token"`
}

// Client talks to the Open Trivia DB question and token endpoints.
type Client struct {
	http *req.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonHeader("Accept", "application/json")
	return &Client{http: httpClient}
}

// Questions requests one batch. Any status other than 200 is returned as *domain.StatusError.
func (c *Client) Questions(ctx context.Context, query domain.QuestionQuery, token string) (domain.QuestionBatch, error) {
	var batch domain.QuestionBatch

	request := c.http.R().
		SetContext(ctx).
		SetQueryParam("amount", strconv.Itoa(query.Amount))
	if query.Category > 0 {
		request.SetQueryParam("category", strconv.Itoa(query.Category))
	}
	if query.Difficulty != "" {
		request.SetQueryParam("difficulty", query.Difficulty)
	}
	if query.Type != "" {
		request.SetQueryParam("type", query.Type)
	}
	if token != "" {
		request.SetQueryParam("token", token)
	}

	resp, err := request.Get(questionsPath)
	if err != nil {
		return batch, errors.Wrap(err, "request questions")
	}
	if resp.GetStatusCode() != http.StatusOK {
		return batch, &domain.StatusError{StatusCode: resp.GetStatusCode()}
	}
	if err := resp.UnmarshalJson(&batch); err != nil {
		return batch, errors.Wrap(err, "decode questions")
	}
	return batch, nil
}

// RequestToken issues a new session token.
func (c *Client) RequestToken(ctx context.Context) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("command", "request").
		Get(tokenPath)
	if err != nil {
		return "", errors.Wrap(err, "request session token")
	}
	if resp.GetStatusCode() != http.StatusOK {
		return "", &domain.StatusError{StatusCode: resp.GetStatusCode()}
	}

	var payload tokenResponse
	if err := resp.UnmarshalJson(&payload); err != nil {
		return "", errors.Wrap(err, "decode session token")
	}
	if payload.ResponseCode != domain.ResponseSuccess || payload.Token == "" {
		return "", errors.Errorf("session token rejected: response_code=%d %s", payload.ResponseCode, payload.ResponseMessage)
	}
	return payload.Token, nil
}
