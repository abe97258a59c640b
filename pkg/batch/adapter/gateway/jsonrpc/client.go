// Package jsonrpc implements gateway.Gateway over the /jsonrpc endpoint of an
// Odoo server.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const moduleName = "jsonrpc"

// DefaultTimeout applies when the configuration sets no request timeout.
const DefaultTimeout = 60 * time.Second

// Remote exception names that mean the credentials or the session are no
// longer valid.
var authFaults = []string{"AccessDenied", "SessionExpired"}

// Client talks to one database of one server. It authenticates lazily on the
// first object call and is safe for concurrent use.
type Client struct {
	cfg        config.RemoteConfig
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	nextID     atomic.Int64

	mu  sync.Mutex
	uid int64
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a Client. transport may be nil to use http.DefaultTransport.
func New(cfg *config.RemoteConfig, transport http.RoundTripper) *Client {
	c := *cfg
	timeout := c.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var limiter *rate.Limiter
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.RateLimit), burst)
	}
	return &Client{
		cfg:        c,
		endpoint:   strings.TrimSuffix(c.URL, "/") + "/jsonrpc",
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		limiter:    limiter,
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
	ID      int64  `json:"id"`
}

type params struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// toBatchError classifies a JSON-RPC error object.
func (e *rpcError) toBatchError(what string) error {
	for _, name := range authFaults {
		if strings.Contains(e.Data.Name, name) {
			return exception.NewAuthenticationError(moduleName, what+" rejected", e).WithCode(e.Code)
		}
	}
	return exception.NewApplicationError(moduleName, what+" failed", e).WithCode(e.Code)
}

// call performs one JSON-RPC call and decodes its result into out.
func (c *Client) call(ctx context.Context, service, method string, out interface{}, args ...interface{}) error {
	what := service + "." + method
	if service == "object" && len(args) >= 5 {
		what = fmt.Sprintf("%v.%v", args[3], args[4])
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return exception.NewConnectivityError(moduleName, "rate limiter wait for "+what+" aborted", err)
		}
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return exception.NewApplicationError(moduleName, "failed to encode "+what, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return exception.NewConfigError(moduleName, "invalid remote url", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exception.NewConnectivityError(moduleName, what+" request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return exception.NewConnectivityError(moduleName, "failed to read "+what+" response", err)
	}
	logger.Debugf("%s: HTTP %d in %s.", what, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return exception.NewAuthenticationError(moduleName, fmt.Sprintf("%s: HTTP %d", what, resp.StatusCode), nil)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return exception.NewConnectivityError(moduleName, fmt.Sprintf("%s: HTTP %d", what, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return exception.NewApplicationError(moduleName, fmt.Sprintf("%s: HTTP %d", what, resp.StatusCode), nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var r response
	if err := dec.Decode(&r); err != nil {
		return exception.NewConnectivityError(moduleName, "malformed "+what+" response", err)
	}
	if r.Error != nil {
		return r.Error.toBatchError(what)
	}
	if out == nil {
		return nil
	}
	dec = json.NewDecoder(bytes.NewReader(r.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return exception.NewApplicationError(moduleName, "unexpected "+what+" result", err)
	}
	return nil
}

// Authenticate logs in and caches the user id for object calls.
func (c *Client) Authenticate(ctx context.Context) (int64, error) {
	var result interface{}
	if err := c.call(ctx, "common", "login", &result, c.cfg.Database, c.cfg.Username, c.cfg.Password); err != nil {
		if exception.IsApplication(err) {
			be, _ := exception.AsBatchError(err)
			return 0, exception.NewAuthenticationError(moduleName, "login failed", be.OriginalErr)
		}
		return 0, err
	}
	uid, ok := model.AsInt64(result)
	if !ok || uid <= 0 {
		return 0, exception.NewAuthenticationError(moduleName, fmt.Sprintf("authentication failed for user '%s' on database '%s'", c.cfg.Username, c.cfg.Database), nil)
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	logger.Infof("Authenticated as '%s' (uid %d) on '%s'.", c.cfg.Username, uid, c.cfg.Database)
	return uid, nil
}

func (c *Client) ensureUID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid > 0 {
		return uid, nil
	}
	return c.Authenticate(ctx)
}

// execute runs object.execute_kw.
func (c *Client) execute(ctx context.Context, out interface{}, modelName, method string, args []interface{}, kwargs map[string]interface{}) error {
	uid, err := c.ensureUID(ctx)
	if err != nil {
		return err
	}
	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	return c.call(ctx, "object", "execute_kw", out, c.cfg.Database, uid, c.cfg.Password, modelName, method, args, kwargs)
}

// Version calls common.version and returns the server version.
func (c *Client) Version(ctx context.Context) (model.VersionInfo, error) {
	var raw struct {
		ServerVersion     string        `json:"server_version"`
		ServerVersionInfo []interface{} `json:"server_version_info"`
		ServerSerie       string        `json:"server_serie"`
		ProtocolVersion   json.Number   `json:"protocol_version"`
	}
	if err := c.call(ctx, "common", "version", &raw); err != nil {
		return model.VersionInfo{}, err
	}
	info := model.VersionInfo{
		ServerVersion:     raw.ServerVersion,
		ServerVersionInfo: raw.ServerVersionInfo,
		ServerSerie:       raw.ServerSerie,
	}
	if p, ok := model.AsInt64(raw.ProtocolVersion); ok {
		info.ProtocolVersion = int(p)
	}
	return info, nil
}

// FieldsGet returns the raw field metadata of modelName, restricted to
// attributes.
func (c *Client) FieldsGet(ctx context.Context, modelName string, attributes []string) (map[string]gateway.RawField, error) {
	var out map[string]gateway.RawField
	kwargs := map[string]interface{}{}
	if len(attributes) > 0 {
		kwargs["attributes"] = attributes
	}
	if err := c.execute(ctx, &out, modelName, "fields_get", nil, kwargs); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckAccessRights reports whether the user may perform op on modelName.
// A denial is false, not an error.
func (c *Client) CheckAccessRights(ctx context.Context, modelName string, op gateway.Operation) (bool, error) {
	var ok bool
	err := c.execute(ctx, &ok, modelName, "check_access_rights", []interface{}{string(op)}, map[string]interface{}{"raise_exception": false})
	return ok, err
}

// SearchRead returns the matching records ordered by id. A limit of 0
// reads every match.
func (c *Client) SearchRead(ctx context.Context, modelName string, domain gateway.Domain, fields []string, offset, limit int) ([]model.Record, error) {
	kwargs := map[string]interface{}{"offset": offset, "order": "id"}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	var out []model.Record
	if err := c.execute(ctx, &out, modelName, "search_read", []interface{}{domain}, kwargs); err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns the ids of the matching records ordered by id.
func (c *Client) Search(ctx context.Context, modelName string, domain gateway.Domain, offset, limit int) ([]int64, error) {
	kwargs := map[string]interface{}{"offset": offset, "order": "id"}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	var out []int64
	if err := c.execute(ctx, &out, modelName, "search", []interface{}{domain}, kwargs); err != nil {
		return nil, err
	}
	return out, nil
}

// Read returns fields of the records with the given ids.
func (c *Client) Read(ctx context.Context, modelName string, ids []int64, fields []string) ([]model.Record, error) {
	kwargs := map[string]interface{}{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	var out []model.Record
	if err := c.execute(ctx, &out, modelName, "read", []interface{}{ids}, kwargs); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMany uses the multi-create form of create. Servers answering with a
// single id for a one-record call are accepted.
func (c *Client) CreateMany(ctx context.Context, modelName string, records []map[string]interface{}) ([]int64, error) {
	var raw json.RawMessage
	if err := c.execute(ctx, &raw, modelName, "create", []interface{}{records}, nil); err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, exception.NewApplicationError(moduleName, fmt.Sprintf("unexpected %s.create result %s", modelName, string(raw)), err)
	}
	return []int64{id}, nil
}

// Write sets values on every record in ids.
func (c *Client) Write(ctx context.Context, modelName string, ids []int64, values map[string]interface{}) (bool, error) {
	var ok bool
	err := c.execute(ctx, &ok, modelName, "write", []interface{}{ids, values}, nil)
	return ok, err
}

// Unlink deletes the records in ids.
func (c *Client) Unlink(ctx context.Context, modelName string, ids []int64) (bool, error) {
	var ok bool
	err := c.execute(ctx, &ok, modelName, "unlink", []interface{}{ids}, nil)
	return ok, err
}
