package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolAndHTTPErrors(t *testing.T) {
	var seen []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen = append(seen, body)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/lms/get":
			_, _ = w.Write([]byte(`{"status":false,"message":"registration is finished","data":{"success":false,"errorCode":"143","value":""}}`))
		case "/lms/set":
			_, _ = w.Write([]byte(`{"status":true,"message":"OK","data":{"success":true,"errorCode":"0"}}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"status":false,"message":"Validation failed!","data":{"rid":"Registration ID is required!"}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithRuntimePath("/lms"))
	ctx := context.Background()

	require.NoError(t, c.SetValue(ctx, "r1", "k", "v"))
	assert.Equal(t, map[string]interface{}{"rid": "r1", "key": "k", "value": "v"}, seen[0])

	_, err := c.GetValue(ctx, "r1", "k")
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "143", perr.Code)
	assert.Equal(t, "get", perr.Operation)

	err = c.Commit(ctx, "", nil)
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnprocessableEntity, herr.Status)
	assert.Equal(t, "Validation failed!", herr.Message)
}
