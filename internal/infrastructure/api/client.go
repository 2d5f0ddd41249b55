package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"inspection-rig/internal/domain/entity"
	"inspection-rig/internal/domain/port"
)

// observationTypeID тип наблюдения "визуальная инспекция" в трекинговом
// сервисе; фиксирован на стороне сервера.
const observationTypeID = 1

// ErrDuplicateObservation сервис уже содержит наблюдение для этой пары
// рез/тест-кейс. Отдельная, восстановимая ошибка: оператору нужно показать
// конкретное сообщение, а не общий отказ API.
var ErrDuplicateObservation = errors.New("observation already exists for this cut")

// StatusError неуспешный ответ трекингового сервиса.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d: %s", e.Code, e.Body)
}

// Config параметры подключения к трекинговому сервису.
type Config struct {
	BaseURL string        // например http://eng-server.local/api
	Timeout time.Duration // таймаут одного запроса

	// InsecureSkipVerify отключает проверку TLS-сертификата:
	// сервис в цеху живёт на самоподписанном сертификате.
	InsecureSkipVerify bool
}

// httpDoer срез http.Client, достаточный клиенту; в тестах подменяется.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client клиент трекингового сервиса инспекций.
type Client struct {
	cfg  Config
	http httpDoer
}

// NewClient создаёт клиент с собственным http.Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.InsecureSkipVerify {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{cfg: cfg, http: hc}
}

// NewClientWithHTTP создаёт клиент поверх готового HTTP-транспорта.
func NewClientWithHTTP(cfg Config, doer httpDoer) *Client {
	return &Client{cfg: cfg, http: doer}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

type createObservationRequest struct {
	TestCaseID        int    `json:"test_case_id"`
	ObservationTypeID int    `json:"observation_type_id"`
	Scope             string `json:"scope"`
	CutNumber         *int   `json:"cut_number,omitempty"`
}

// CreateObservation создаёт наблюдение для тест-кейса.
// Структурный ответ сервиса о нарушении уникальности пары рез/наблюдение
// превращается в ErrDuplicateObservation; любой другой неуспешный ответ —
// фатальная ошибка API.
func (c *Client) CreateObservation(ctx context.Context, testCaseID int, scope entity.ObservationScope, cutNumber int) (*entity.Observation, error) {
	reqBody := createObservationRequest{
		TestCaseID:        testCaseID,
		ObservationTypeID: observationTypeID,
		Scope:             string(scope),
	}
	if scope == entity.ScopeCut {
		reqBody.CutNumber = &cutNumber
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding observation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/observations"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating observation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading observation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && isDuplicateBody(body) {
			return nil, ErrDuplicateObservation
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// Ответ обязан быть JSON-объектом с целым id; всё остальное — отказ.
	var parsed struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed observation response: %w", err)
	}
	if parsed.ID == nil {
		return nil, fmt.Errorf("observation response has no id: %s", strings.TrimSpace(string(body)))
	}

	return &entity.Observation{ID: *parsed.ID, Scope: scope, CutNumber: cutNumber}, nil
}

// isDuplicateBody распознаёт в теле ответа нарушение уникальности.
//
// Сервис пока не отдаёт структурный код ошибки, поэтому классификация
// держится на токенах ошибки БД в полях error/detail. Эвристика-заглушка
// до появления выделенного кода на стороне сервиса.
func isDuplicateBody(body []byte) bool {
	haystack := string(body)

	var parsed struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" || parsed.Detail != "" {
			haystack = parsed.Error + " " + parsed.Detail
		}
	}

	haystack = strings.ToLower(haystack)
	for _, token := range []string{"uniqueviolation", "unique constraint", "duplicate key"} {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

// UploadAttachment загружает файл снимка в наблюдение multipart-запросом.
// tag (номер зуба) прикладывается отдельным полем.
func (c *Client) UploadAttachment(ctx context.Context, observationID int, path string, tag int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening attachment: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading attachment: %w", err)
	}
	if err := mw.WriteField("tag", strconv.Itoa(tag)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	url := c.url("/observations/" + strconv.Itoa(observationID) + "/attachments")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// GetSampleContext возвращает контекст образца по идентификатору с этикетки:
// тест-кейс, номер текущего реза и число зубьев из атрибутов конструкции.
func (c *Client) GetSampleContext(ctx context.Context, identifier string) (*entity.SampleContext, error) {
	url := c.url("/samples/identifier/" + neturl.PathEscape(identifier) + "/context")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sample context: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading sample context: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed struct {
		Sample struct {
			Name   string `json:"name"`
			Design struct {
				AttributeValues map[string]json.Number `json:"attribute_values"`
			} `json:"design"`
		} `json:"sample"`
		TestCase struct {
			ID *int `json:"id"`
		} `json:"test_case"`
		CutNumber int `json:"cut_number"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed sample context: %w", err)
	}
	if parsed.TestCase.ID == nil {
		return nil, errors.New("sample context has no test case")
	}

	raw, ok := parsed.Sample.Design.AttributeValues["Number of Teeth"]
	if !ok {
		return nil, errors.New(`sample context has no "Number of Teeth" attribute`)
	}
	teethF, err := raw.Float64()
	if err != nil {
		return nil, fmt.Errorf("number of teeth is not numeric: %q", raw.String())
	}
	teeth := int(teethF)
	if teeth <= 0 {
		return nil, fmt.Errorf("invalid teeth count: %d", teeth)
	}

	return &entity.SampleContext{
		TestCaseID: *parsed.TestCase.ID,
		Teeth:      teeth,
		CutNumber:  parsed.CutNumber,
		SampleName: parsed.Sample.Name,
	}, nil
}

var _ port.Observations = (*Client)(nil)
