package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/fs/fshttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	oldAccounting, oldHTTP := accounting.DefaultMetrics, fshttp.DefaultMetrics
	defer func() {
		accounting.DefaultMetrics, fshttp.DefaultMetrics = oldAccounting, oldHTTP
	}()

	ctx := context.Background()
	s, err := Start(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, s.Shutdown(ctx))
	}()

	require.NotNil(t, accounting.DefaultMetrics)
	require.NotNil(t, fshttp.DefaultMetrics)
	accounting.DefaultMetrics.OnReply(226)
	fshttp.DefaultMetrics.OnResponse("example.com", 404)

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ftpfetch_control_replies_total{class="2xx"} 1`)
	assert.Contains(t, string(body), `ftpfetch_http_status_code{code="404",host="example.com"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStartBadAddress(t *testing.T) {
	oldAccounting, oldHTTP := accounting.DefaultMetrics, fshttp.DefaultMetrics
	defer func() {
		accounting.DefaultMetrics, fshttp.DefaultMetrics = oldAccounting, oldHTTP
	}()

	_, err := Start(context.Background(), "127.0.0.1:-1")
	assert.Error(t, err)
}
