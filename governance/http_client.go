package governance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

type HttpClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var _ Client = new(HttpClient)

type HttpClient struct {
	conf   HttpClientConfig
	client *http.Client
}

func NewHttpClient(conf HttpClientConfig) *HttpClient {
	if conf.Timeout <= 0 {
		conf.Timeout = 5 * time.Second
	}
	if conf.InitialInterval <= 0 {
		conf.InitialInterval = 200 * time.Millisecond
	}
	if conf.MaxInterval <= 0 {
		conf.MaxInterval = 2 * time.Second
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	return &HttpClient{
		conf:   conf,
		client: &http.Client{},
	}
}

type validator interface {
	Validate() error
}

func (c *HttpClient) RegistrationStatus(ctx context.Context, subjectId string) (*RegistrationStatus, error) {
	var out RegistrationStatus
	err := c.call(ctx, SYSTEM_REGISTRATION, http.MethodGet, "/internal/v1/registration/"+url.PathEscape(subjectId)+"/status", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) PolicyRequirements(ctx context.Context, req PolicyRequest) (*PolicyRequirements, error) {
	var out PolicyRequirements
	if err := c.call(ctx, SYSTEM_POLICY, http.MethodPost, "/internal/v1/policy/requirements", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) ApprovalStatus(ctx context.Context, subjectId string) (*ApprovalStatus, error) {
	var out ApprovalStatus
	if err := c.call(ctx, SYSTEM_APPROVALS, http.MethodGet, "/internal/v1/approvals/"+url.PathEscape(subjectId)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) EvaluationStatus(ctx context.Context, subjectId string) (*EvaluationStatus, error) {
	var out EvaluationStatus
	if err := c.call(ctx, SYSTEM_EVALUATIONS, http.MethodGet, "/internal/v1/evaluations/"+url.PathEscape(subjectId)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) TriggerEvaluations(ctx context.Context, subjectId string, evaluations []string) (*EvaluationStatus, error) {
	var out EvaluationStatus
	body := TriggerRequest{Evaluations: evaluations}
	if err := c.call(ctx, SYSTEM_EVALUATIONS, http.MethodPost, "/internal/v1/evaluations/"+url.PathEscape(subjectId)+"/trigger", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) ArtifactStatus(ctx context.Context, subjectId string) (*ArtifactStatus, error) {
	var out ArtifactStatus
	if err := c.call(ctx, SYSTEM_ARTIFACTS, http.MethodGet, "/internal/v1/artifacts/"+url.PathEscape(subjectId)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HttpClient) UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) (*ArtifactStatus, error) {
	var out ArtifactStatus
	path := "/internal/v1/artifacts/" + url.PathEscape(subjectId) + "/" + url.PathEscape(artifact.Type)
	if err := c.call(ctx, SYSTEM_ARTIFACTS, http.MethodPut, path, artifact, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one logical request with a per attempt timeout. Transport
// failures, 5xx and 429 are retried with exponential backoff; any other
// non-2xx status or an invalid body is a permanent ContractError.
func (c *HttpClient) call(ctx context.Context, system string, method string, path string, body any, out validator) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return ContractError{System: system, Message: err.Error()}
		}
		payload = data
	}
	attempts := 0
	operation := func() error {
		attempts++
		reqCtx, cancel := context.WithTimeout(ctx, c.conf.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, method, c.conf.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(ContractError{System: system, Message: err.Error()})
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(ContractError{System: system, Message: fmt.Sprintf("%s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))})
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(ContractError{System: system, Message: fmt.Sprintf("malformed response: %v", err)})
		}
		if err := out.Validate(); err != nil {
			return backoff.Permanent(ContractError{System: system, Message: err.Error()})
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("governance call failed, retrying", zap.String("system", system), zap.String("path", path), zap.Duration("wait", wait), zap.Error(err))
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.conf.MaxRetries), ctx), notify)
	if err == nil {
		return nil
	}
	var ce ContractError
	if errors.As(err, &ce) {
		return ce
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return UnavailableError{System: system, Attempts: attempts, Err: err}
}

func (c *HttpClient) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.conf.InitialInterval
	b.MaxInterval = c.conf.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	return b
}
