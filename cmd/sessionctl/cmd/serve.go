package cmd

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a protected session page and Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
		engine, done, err := openEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer done()

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           newRouter(engine),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		pterm.Info.Printf("Listening on %s\n", serveAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8090", "listen address")
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<title>Session</title>
{{if .Snapshot.IsAuthenticated}}
<p>Signed in as {{.Snapshot.Identity.DisplayName}} ({{.Snapshot.TenantID}})</p>
<p>Credential valid until {{.Snapshot.ExpiresAt.Format "15:04:05"}}</p>
<ul>{{range .Snapshot.Permissions.Names}}<li>{{.}}</li>{{end}}</ul>
<form method="post" action="/sign-out"><button>Sign out</button></form>
{{else}}
{{with .Error}}<p>{{.}}</p>{{end}}
<form method="post" action="/sign-in">
<input type="hidden" name="next" value="{{.Next}}">
<input name="email" placeholder="Email">
<input name="password" type="password" placeholder="Password">
<input name="mfa" placeholder="Authenticator code">
<button>Sign in</button>
</form>
{{end}}`))

type pageData struct {
	Snapshot goSession.Snapshot
	Next     string
	Error    string
}

func newRouter(engine *goSession.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         60 * 15,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", prometheus.New(engine).Handler())

	r.Get("/sign-in", func(w http.ResponseWriter, r *http.Request) {
		render(w, pageData{Next: r.URL.Query().Get("next")})
	})
	r.Post("/sign-in", func(w http.ResponseWriter, r *http.Request) {
		next := r.FormValue("next")
		_, err := engine.SignIn(r.Context(), goSession.SignInInput{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			MFACode:  r.FormValue("mfa"),
		})
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			render(w, pageData{Next: next, Error: goSession.UserMessage(err)})
			return
		}
		if next == "" || next[0] != '/' || (len(next) > 1 && next[1] == '/') {
			next = "/"
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	})
	r.Post("/sign-out", func(w http.ResponseWriter, r *http.Request) {
		_ = engine.SignOut(r.Context())
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(engine, "/sign-in"))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			snap, _ := middleware.SnapshotFromContext(r.Context())
			render(w, pageData{Snapshot: snap})
		})
	})
	return r
}

func render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTmpl.Execute(w, data)
}
