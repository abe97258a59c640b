package jsonrpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/gateway/jsonrpc"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

type call struct {
	Service string
	Method  string
	Args    []interface{}
}

// server is a scripted /jsonrpc endpoint. handle returns the result or the
// error object of one call.
type server struct {
	t      *testing.T
	mu     sync.Mutex
	calls  []call
	handle func(c call) (result interface{}, rpcErr map[string]interface{})
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(s.t, "/jsonrpc", r.URL.Path)
	assert.Equal(s.t, http.MethodPost, r.Method)

	var req struct {
		ID     int64 `json:"id"`
		Params call  `json:"params"`
	}
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	s.mu.Lock()
	s.calls = append(s.calls, req.Params)
	s.mu.Unlock()

	result, rpcErr := s.handle(req.Params)
	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) objectCalls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.Service == "object" {
			out = append(out, c)
		}
	}
	return out
}

func newClient(t *testing.T, handle func(c call) (interface{}, map[string]interface{})) (*jsonrpc.Client, *server) {
	t.Helper()
	s := &server{t: t, handle: handle}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return jsonrpc.New(&config.RemoteConfig{
		URL:            ts.URL + "/",
		Database:       "db",
		Username:       "admin",
		Password:       "secret",
		TimeoutSeconds: 5,
		RateLimit:      1000,
		RateBurst:      10,
	}, nil), s
}

// odoo answers login with uid 2 and object calls with handle.
func odoo(handle func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{})) func(c call) (interface{}, map[string]interface{}) {
	return func(c call) (interface{}, map[string]interface{}) {
		switch {
		case c.Service == "common" && c.Method == "login":
			return 2, nil
		case c.Service == "object" && c.Method == "execute_kw":
			kwargs, _ := c.Args[6].(map[string]interface{})
			args, _ := c.Args[5].([]interface{})
			return handle(c.Args[3].(string), c.Args[4].(string), args, kwargs)
		}
		return nil, map[string]interface{}{"code": 404, "message": "unknown"}
	}
}

func fault(name, message string) map[string]interface{} {
	return map[string]interface{}{
		"code":    200,
		"message": "Odoo Server Error",
		"data":    map[string]interface{}{"name": name, "message": message},
	}
}

func TestAuthenticate(t *testing.T) {
	c, s := newClient(t, func(c call) (interface{}, map[string]interface{}) {
		return 7, nil
	})

	uid, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), uid)
	require.Len(t, s.calls, 1)
	assert.Equal(t, "common", s.calls[0].Service)
	assert.Equal(t, "login", s.calls[0].Method)
	assert.Equal(t, []interface{}{"db", "admin", "secret"}, s.calls[0].Args)
}

func TestAuthenticate_Rejected(t *testing.T) {
	c, _ := newClient(t, func(c call) (interface{}, map[string]interface{}) {
		return false, nil
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, exception.IsAuthentication(err))
	assert.True(t, exception.IsFatal(err))
}

func TestVersion(t *testing.T) {
	c, _ := newClient(t, func(c call) (interface{}, map[string]interface{}) {
		return map[string]interface{}{
			"server_version":      "17.0",
			"server_version_info": []interface{}{17, 0, 0, "final", 0, ""},
			"server_serie":        "17.0",
			"protocol_version":    1,
		}, nil
	})

	info, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "17.0", info.ServerVersion)
	assert.Equal(t, "17.0", info.ServerSerie)
	assert.Equal(t, 1, info.ProtocolVersion)
	assert.Len(t, info.ServerVersionInfo, 6)
}

func TestSearchRead_AuthenticatesOnceAndSendsDomain(t *testing.T) {
	c, s := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		assert.Equal(t, "res.partner", modelName)
		assert.Equal(t, "search_read", method)
		return []map[string]interface{}{{"id": 3, "name": "Acme"}}, nil
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		recs, err := c.SearchRead(ctx, "res.partner", gateway.Eq("name", "Acme"), []string{"id", "name"}, 10, 5)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, json.Number("3"), recs[0]["id"])
		assert.Equal(t, "Acme", recs[0]["name"])
	}

	assert.Len(t, s.calls, 3)
	obj := s.objectCalls()[0]
	assert.Equal(t, []interface{}{"db", float64(2), "secret", "res.partner", "search_read"}, obj.Args[:5])
	assert.Equal(t, []interface{}{[]interface{}{[]interface{}{"name", "=", "Acme"}}}, obj.Args[5])
	kwargs := obj.Args[6].(map[string]interface{})
	assert.Equal(t, float64(10), kwargs["offset"])
	assert.Equal(t, float64(5), kwargs["limit"])
	assert.Equal(t, "id", kwargs["order"])
	assert.Equal(t, []interface{}{"id", "name"}, kwargs["fields"])
}

func TestSearchRead_NoLimit(t *testing.T) {
	c, s := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		return []interface{}{}, nil
	}))

	recs, err := c.SearchRead(context.Background(), "res.partner", nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	obj := s.objectCalls()[0]
	assert.Equal(t, []interface{}{[]interface{}{}}, obj.Args[5])
	kwargs := obj.Args[6].(map[string]interface{})
	assert.NotContains(t, kwargs, "limit")
	assert.NotContains(t, kwargs, "fields")
}

func TestCreateMany(t *testing.T) {
	c, s := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		rows := args[0].([]interface{})
		ids := make([]int, 0, len(rows))
		for i := range rows {
			ids = append(ids, 100+i)
		}
		return ids, nil
	}))

	ids, err := c.CreateMany(context.Background(), "res.partner", []map[string]interface{}{{"name": "A"}, {"name": "B"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, ids)
	assert.Equal(t, "create", s.objectCalls()[0].Args[4])
}

func TestCreateMany_SingleID(t *testing.T) {
	c, _ := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		return 42, nil
	}))

	ids, err := c.CreateMany(context.Background(), "res.partner", []map[string]interface{}{{"name": "A"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
}

func TestWriteUnlinkAndAccess(t *testing.T) {
	c, _ := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		switch method {
		case "check_access_rights":
			assert.Equal(t, []interface{}{"create"}, args)
			assert.Equal(t, false, kwargs["raise_exception"])
			return false, nil
		case "write", "unlink":
			return true, nil
		case "search":
			return []int{5, 6}, nil
		case "fields_get":
			assert.Equal(t, []interface{}{"type"}, kwargs["attributes"])
			return map[string]interface{}{"name": map[string]interface{}{"type": "char"}}, nil
		}
		return nil, fault("ValueError", "unexpected "+method)
	}))
	ctx := context.Background()

	ok, err := c.CheckAccessRights(ctx, "res.partner", gateway.OperationCreate)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Write(ctx, "res.partner", []int64{5}, map[string]interface{}{"name": "B"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Unlink(ctx, "res.partner", []int64{5})
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := c.Search(ctx, "res.partner", nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, ids)

	fields, err := c.FieldsGet(ctx, "res.partner", []string{"type"})
	require.NoError(t, err)
	assert.Equal(t, "char", fields["name"]["type"])
}

func TestErrorMapping(t *testing.T) {
	c, _ := newClient(t, odoo(func(modelName, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, map[string]interface{}) {
		switch modelName {
		case "session.expired":
			return nil, fault("odoo.http.SessionExpiredException", "Session expired")
		default:
			return nil, fault("odoo.exceptions.ValidationError", "The email must be unique")
		}
	}))
	ctx := context.Background()

	_, err := c.CreateMany(ctx, "res.partner", []map[string]interface{}{{"name": "A"}})
	require.Error(t, err)
	assert.True(t, exception.IsApplication(err))
	assert.False(t, exception.IsTemporary(err))
	assert.Contains(t, exception.ExtractErrorMessage(err), "The email must be unique")
	be, _ := exception.AsBatchError(err)
	assert.Equal(t, 200, be.Code)

	_, err = c.Unlink(ctx, "session.expired", []int64{1})
	assert.True(t, exception.IsAuthentication(err))
}

func TestHTTPFaultsAreConnectivity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c := jsonrpc.New(&config.RemoteConfig{URL: ts.URL}, nil)

	_, err := c.Version(context.Background())
	require.Error(t, err)
	assert.True(t, exception.IsConnectivity(err))
	assert.True(t, exception.IsTemporary(err))

	ts.Close()
	_, err = c.Version(context.Background())
	require.Error(t, err)
	assert.True(t, exception.IsConnectivity(err))
}

func TestHTTPUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)
	c := jsonrpc.New(&config.RemoteConfig{URL: ts.URL}, nil)

	_, err := c.Authenticate(context.Background())
	assert.True(t, exception.IsAuthentication(err))
}

func TestCancelledContext(t *testing.T) {
	c, _ := newClient(t, func(c call) (interface{}, map[string]interface{}) {
		return 2, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Version(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, exception.IsTemporary(err))
}
