package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// RequestInfo describes the request behind a resource.
type RequestInfo struct {
	URL    string
	Method string
	Header map[string]string
	Body   string

	// Options are the keyed options as the caller gave them, without the
	// defaulted method.
	Options map[string]any
}

func newRequestInfo(target string, req Request) RequestInfo {
	return RequestInfo{
		URL:     target,
		Method:  req.method(),
		Header:  req.Header,
		Body:    req.Body,
		Options: req.options(),
	}
}

// ResponseInfo describes the last response received.
type ResponseInfo struct {
	StatusCode int
	Status     string
	Header     http.Header
}

// Status is the transport metadata of a resource.
type Status struct {
	Code       int
	Text       string
	Err        error
	FinishedAt time.Time
	Request    RequestInfo
	Response   *ResponseInfo
}

// Resource is a reactive instance bound to a request.
type Resource struct {
	client *Client
	key    string
	url    string
	req    Request
	init   any
	value  reactive.Value

	mu     sync.Mutex
	status Status
}

// Key returns the registry key of the instance.
func (r *Resource) Key() string { return r.key }

// URL returns the resolved request URL.
func (r *Resource) URL() string { return r.url }

// Value returns the reactive instance.
func (r *Resource) Value() reactive.Value { return r.value }

// Status returns the current transport metadata.
func (r *Resource) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Refresh sends the request again, with opt overriding the resource's own
// options when non-nil. When update is false the response body is not merged
// into the instance. A refresh already running for the same key makes this
// call a no-op. The returned error is the one recorded in the status.
func (r *Resource) Refresh(ctx context.Context, opt *Request, update bool) error {
	if !r.client.begin(r.key) {
		return nil
	}
	defer r.client.finish(r.key)

	req := r.req
	if opt != nil {
		req = *opt
	}

	prev := r.Status()
	r.record(Status{Request: prev.Request, FinishedAt: prev.FinishedAt, Response: prev.Response})

	outcome := r.send(ctx, req, update)
	return outcome.Err
}

// Push refreshes with a write-style request. Without a body the initial value
// is sent as JSON; without a method POST is used.
func (r *Resource) Push(ctx context.Context, opt *Request, update bool) error {
	req := r.req
	if opt != nil {
		req = *opt
	}
	if req.Method == "" || (opt == nil && strings.EqualFold(req.Method, http.MethodGet)) {
		req.Method = http.MethodPost
	}
	if req.Body == "" {
		body, err := value.Marshal(r.init)
		if err != nil {
			return fmt.Errorf("push: encode initial value: %w", err)
		}
		req.Body = string(body)
		if req.Header == nil {
			req.Header = map[string]string{}
		}
		if _, ok := req.Header["Content-Type"]; !ok {
			req.Header["Content-Type"] = "application/json"
		}
	}
	return r.Refresh(ctx, &req, update)
}

func (r *Resource) send(ctx context.Context, req Request, update bool) Status {
	info := newRequestInfo(r.url, req)
	fail := func(err error, resp *ResponseInfo) Status {
		code, text := http.StatusInternalServerError, err.Error()
		if resp != nil {
			code, text = resp.StatusCode, statusText(resp)
		}
		st := Status{Code: code, Text: text, Err: err, FinishedAt: r.client.clock(), Request: info, Response: resp}
		r.record(st)
		return st
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), r.url, body)
	if err != nil {
		return fail(err, nil)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.doer.Do(httpReq)
	if err != nil {
		return fail(err, nil)
	}
	defer resp.Body.Close()

	respInfo := &ResponseInfo{StatusCode: resp.StatusCode, Status: resp.Status, Header: resp.Header.Clone()}
	if resp.StatusCode >= 300 {
		return fail(errors.New(statusText(respInfo)), respInfo)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err), nil)
	}
	if update {
		data, err := value.Unmarshal(raw)
		if err != nil {
			return fail(fmt.Errorf("decode response: %w", err), nil)
		}
		if err := r.merge(data); err != nil {
			return fail(err, nil)
		}
	}

	st := Status{
		Code:       resp.StatusCode,
		Text:       statusText(respInfo),
		FinishedAt: r.client.clock(),
		Request:    info,
		Response:   respInfo,
	}
	r.record(st)
	return st
}

// merge replaces the instance content with data.
func (r *Resource) merge(data any) error {
	switch inst := r.value.(type) {
	case *reactive.Array:
		items, ok := data.([]any)
		if !ok {
			return fmt.Errorf("decode response: expected array, got %s", value.KindOf(data))
		}
		r.client.mutate(func() { inst.ReplaceItems(items) })
	case *reactive.Object:
		fields, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("decode response: expected object, got %s", value.KindOf(data))
		}
		r.client.mutate(func() { reactive.Replace(inst, fields) })
	}
	return nil
}

// record stores st and mirrors it onto record instances.
func (r *Resource) record(st Status) {
	r.mu.Lock()
	r.status = st
	r.mu.Unlock()

	obj, ok := r.value.(*reactive.Object)
	if !ok {
		return
	}

	var errText, finished, response any
	if st.Err != nil {
		errText = st.Err.Error()
	}
	if !st.FinishedAt.IsZero() {
		finished = st.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	if st.Response != nil {
		headers := make(map[string]any, len(st.Response.Header))
		for k := range st.Response.Header {
			headers[k] = st.Response.Header.Get(k)
		}
		response = map[string]any{
			"status":     int64(st.Response.StatusCode),
			"statusText": statusText(st.Response),
			"headers":    headers,
		}
	}
	request := map[string]any{
		"url":     st.Request.URL,
		"options": value.Clone(st.Request.Options),
	}

	r.client.mutate(func() {
		obj.Set(reactive.MetaStatus, st.Code)
		obj.Set(reactive.MetaStatusText, st.Text)
		obj.Set(reactive.MetaError, errText)
		obj.Set(reactive.MetaFinishedAt, finished)
		obj.Set(reactive.MetaRequest, request)
		obj.Set(reactive.MetaResponse, response)
	})
}

func statusText(resp *ResponseInfo) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
