package agdhttp_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSrv is the common Server header value for tests.
const testSrv = "testServer/1.0"

// testError is the common error for tests.
const testError errors.Error = "test error"

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		srv        string
		wantErrMsg string
		exp        int
		got        int
	}{{
		name:       "ok",
		srv:        testSrv,
		wantErrMsg: "",
		exp:        http.StatusOK,
		got:        http.StatusOK,
	}, {
		name:       "no_server",
		srv:        "",
		wantErrMsg: `server "": status code error: expected 200, got 404`,
		exp:        http.StatusOK,
		got:        http.StatusNotFound,
	}, {
		name:       "server",
		srv:        testSrv,
		wantErrMsg: `server "` + testSrv + `": status code error: expected 204, got 500`,
		exp:        http.StatusNoContent,
		got:        http.StatusInternalServerError,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := &http.Response{
				StatusCode: tc.got,
				Header: http.Header{
					httphdr.Server: []string{tc.srv},
				},
			}

			testutil.AssertErrorMsg(t, tc.wantErrMsg, agdhttp.CheckStatus(resp, tc.exp))
		})
	}
}

func TestWrapServerError(t *testing.T) {
	t.Parallel()

	resp := &http.Response{
		Header: http.Header{
			httphdr.Server: []string{testSrv},
		},
	}

	err := agdhttp.WrapServerError(testError, resp)
	assert.ErrorIs(t, err, testError)
	testutil.AssertErrorMsg(t, `server "`+testSrv+`": `+string(testError), err)
}

func TestParseHTTPURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		in         string
		wantErrMsg string
	}{{
		name:       "ok",
		in:         "https://backend.example/api/v1/",
		wantErrMsg: "",
	}, {
		name:       "bad_scheme",
		in:         "ftp://backend.example/",
		wantErrMsg: `parse "ftp://backend.example/": bad scheme "ftp"`,
	}, {
		name:       "relative",
		in:         "/api/v1/",
		wantErrMsg: `parse "/api/v1/": empty host`,
	}, {
		name:       "empty",
		in:         "",
		wantErrMsg: `parse "": empty host`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			u, err := agdhttp.ParseHTTPURL(tc.in)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
			if tc.wantErrMsg == "" {
				assert.Equal(t, tc.in, u.String())
			} else {
				assert.Nil(t, u)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pt := testutil.PanicT{}
		require.Equal(pt, agdhttp.UserAgent(), r.Header.Get(httphdr.UserAgent))

		w.Header().Set(httphdr.Server, testSrv)
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"enabled":true}`))
		case "/bad":
			_, _ = w.Write([]byte(`{"enabled":`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cli := agdhttp.NewClient(&agdhttp.ClientConfig{
		Timeout: testTimeout,
	})

	type state struct {
		Enabled bool `json:"enabled"`
	}

	ctx := testutil.ContextWithTimeout(t, testTimeout)

	t.Run("ok", func(t *testing.T) {
		resp, getErr := cli.Get(ctx, base.JoinPath("ok"))
		require.NoError(t, getErr)

		var s state
		require.NoError(t, agdhttp.DecodeJSON(resp, http.StatusOK, datasize.KB, &s))

		assert.True(t, s.Enabled)
	})

	t.Run("bad_json", func(t *testing.T) {
		resp, getErr := cli.Get(ctx, base.JoinPath("bad"))
		require.NoError(t, getErr)

		var s state
		decErr := agdhttp.DecodeJSON(resp, http.StatusOK, datasize.KB, &s)

		srvErr := &agdhttp.ServerError{}
		require.ErrorAs(t, decErr, &srvErr)

		assert.Equal(t, testSrv, srvErr.ServerName)
	})

	t.Run("status", func(t *testing.T) {
		resp, getErr := cli.Get(ctx, base.JoinPath("missing"))
		require.NoError(t, getErr)

		var s state
		decErr := agdhttp.DecodeJSON(resp, http.StatusOK, datasize.KB, &s)

		statusErr := &agdhttp.StatusError{}
		require.ErrorAs(t, decErr, &statusErr)

		assert.Equal(t, http.StatusNotFound, statusErr.Got)
	})
}
