package bilibili

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bililottery/pkg/auth"
	"bililottery/pkg/config"
	"bililottery/pkg/errors"
	"bililottery/pkg/throttle"
)

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		UserAgent:         "bililottery-test/1.0",
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
		Burst:             100,
	}
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(testAPIConfig(), &auth.Session{SessData: "sess", BiliJct: "jct", Buvid3: "bv"}, nil, nil)
	return client, server
}

func TestExecuteGetEncodesQueryParams(t *testing.T) {
	var gotQuery map[string]string
	var gotCookie string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"oid":  r.URL.Query().Get("oid"),
			"type": r.URL.Query().Get("type"),
		}
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"code":0,"data":{"ok":true}}`))
	}))
	defer server.Close()

	data, err := client.Execute(context.Background(), http.MethodGet, server.URL, map[string]string{
		"oid":  "12345",
		"type": "1",
	}, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "12345", gotQuery["oid"])
	assert.Equal(t, "1", gotQuery["type"])
	assert.Equal(t, "SESSDATA=sess; bili_jct=jct; buvid3=bv", gotCookie)
}

func TestExecutePostSendsJSONBody(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		payload, _ := io.ReadAll(r.Body)
		json.Unmarshal(payload, &gotBody)
		w.Write([]byte(`{"code":0,"data":null}`))
	}))
	defer server.Close()

	_, err := client.Execute(context.Background(), http.MethodPost, server.URL, map[string]string{"id": "42"}, false)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "42", gotBody["id"])
}

func TestExecuteRawSkipsEnvelope(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-352,"message":"ignored in raw mode"}`))
	}))
	defer server.Close()

	body, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, true)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-352")
}

func TestExecuteClassifiesRateLimit(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer server.Close()

	_, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimit(err))
}

func TestExecuteClassifiesTransportError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, false)
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeTransport, apiErr.Type)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
}

func TestExecuteClassifiesApplicationError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-404,"message":"啥都木有"}`))
	}))
	defer server.Close()

	_, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, false)
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeApplication, apiErr.Type)
	assert.Equal(t, -404, apiErr.Code)
	assert.Contains(t, apiErr.Message, "啥都木有")
}

func TestExecuteRecordsOneThrottleTickPerRequest(t *testing.T) {
	ctrl := throttle.NewController(nil, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":null}`))
	}))
	defer server.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	client := New(testAPIConfig(), nil, ctrl, nil)

	ctx := context.Background()
	_, err := client.Execute(ctx, http.MethodGet, server.URL, nil, false)
	require.NoError(t, err)
	_, err = client.Execute(ctx, http.MethodGet, failing.URL, nil, false)
	require.Error(t, err)

	// Success and failure alike count as exactly one request each.
	assert.Equal(t, int64(2), ctrl.Count())
}

func TestGetJSONDecodesData(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"mid":"12345","uname":"tester"}}`))
	}))
	defer server.Close()

	var nav navData
	require.NoError(t, client.GetJSON(context.Background(), server.URL, nil, &nav))
	assert.Equal(t, int64(12345), nav.Mid.Int64())
	assert.Equal(t, "tester", nav.Uname)
}

func TestNewWithoutSessionSendsNoCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"code":0,"data":null}`))
	}))
	defer server.Close()

	client := New(testAPIConfig(), nil, nil, nil)
	_, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, false)
	require.NoError(t, err)
	assert.Empty(t, gotCookie)
}
