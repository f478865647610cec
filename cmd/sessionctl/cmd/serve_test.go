package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/internal/fakeserver"
	"github.com/MrEthical07/goSession/storage"
)

func newServeEngine(t *testing.T) *goSession.Engine {
	t.Helper()

	srv, err := fakeserver.New(fakeserver.Config{})
	require.NoError(t, err)
	endpoint := srv.Start()
	t.Cleanup(srv.Close)
	srv.AddUser(fakeserver.User{
		Identity: credential.Identity{
			ID: "u1", TenantID: "t1", Email: "ops@acme.test", FirstName: "Olga", LastName: "Park", IsEmailVerified: true,
		},
		Customer:    credential.CustomerSummary{ID: "t1", Code: "ACME", Name: "Acme"},
		Password:    "correct-horse",
		Permissions: []string{"crm.read"},
	})

	c := goSession.DefaultConfig()
	c.Endpoint.URL = endpoint
	c.Metrics.Enabled = true
	c.Scheduler.Enabled = false

	engine, err := goSession.New().
		WithConfig(c).
		WithStorage(storage.NewMemoryHub().Open(c.Storage.Key, "serve-test")).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	require.NoError(t, engine.Start(t.Context()))
	return engine
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func TestServeRouterSignInFlow(t *testing.T) {
	engine := newServeEngine(t)
	ts := httptest.NewServer(newRouter(engine))
	defer ts.Close()
	client := &http.Client{CheckRedirect: noRedirect}

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/sign-in?next=%2F", resp.Header.Get("Location"))

	resp, err = client.PostForm(ts.URL+"/sign-in", url.Values{
		"email": {"ops@acme.test"}, "password": {"wrong"}, "next": {"/"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.PostForm(ts.URL+"/sign-in", url.Values{
		"email": {"ops@acme.test"}, "password": {"correct-horse"}, "next": {"//evil.test"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp, err = client.Get(ts.URL + "/")
	require.NoError(t, err)
	body := readAll(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Olga Park")
	require.Contains(t, body, "crm.read")

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body = readAll(t, resp)
	require.Contains(t, body, "gosession_sign_in_success_total 1")
	require.Contains(t, body, "gosession_sign_in_failure_total 1")
	require.Contains(t, body, "gosession_authenticated 1")
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"id=42", "name=Acme", `filter={"open":true}`})
	require.NoError(t, err)
	require.Equal(t, float64(42), vars["id"])
	require.Equal(t, "Acme", vars["name"])
	require.Equal(t, map[string]any{"open": true}, vars["filter"])

	_, err = parseVars([]string{"novalue"})
	require.Error(t, err)

	vars, err = parseVars(nil)
	require.NoError(t, err)
	require.Nil(t, vars)
}
