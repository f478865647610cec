package fakeserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/jwt"
)

// User is an account known to the server.
type User struct {
	Identity    credential.Identity
	Customer    credential.CustomerSummary
	Password    string
	MFACode     string
	Locked      bool
	Permissions []string
}

// Config tunes the server. Zero values select defaults.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Now       func() time.Time
	// OmitExpiresAt drops expiresAt from payloads so clients must read exp.
	OmitExpiresAt bool
}

type grant struct {
	email   string
	refresh string
}

// Server is the fake endpoint. Start it with [Server.Start] or mount
// [Server.Router] yourself.
type Server struct {
	cfg    Config
	issuer *jwt.Issuer

	mu        sync.Mutex
	users     map[string]*User
	refresh   map[string]string // renewal credential -> email
	access    map[string]grant  // access credential -> owner
	revoked   map[string]bool   // access credentials rejected before exp
	renewGate chan struct{}
	dataFault func(call int) string

	renewals  atomic.Int64
	dataCalls atomic.Int64
	signOuts  atomic.Int64

	httpSrv *httptest.Server
}

// New builds a server.
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("fakeserver-secret-0123456789")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	issuer, err := jwt.NewIssuer(jwt.IssuerConfig{Secret: cfg.Secret, AccessTTL: cfg.AccessTTL, Issuer: "fakeserver"})
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		issuer:  issuer.WithNow(cfg.Now),
		users:   make(map[string]*User),
		refresh: make(map[string]string),
		access:  make(map[string]grant),
		revoked: make(map[string]bool),
	}, nil
}

// Router returns the chi router serving POST /graphql and GET /healthz.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Post("/graphql", s.handleGraphQL)
	return r
}

// Start serves on a loopback port and returns the GraphQL endpoint URL.
func (s *Server) Start() string {
	s.httpSrv = httptest.NewServer(s.Router())
	return s.httpSrv.URL + "/graphql"
}

// Close stops a started server.
func (s *Server) Close() {
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

// AddUser registers u under its e-mail.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[strings.ToLower(u.Identity.Email)] = &cp
}

// Renewals counts refreshSession calls, successful or not.
func (s *Server) Renewals() int64 { return s.renewals.Load() }

// DataCalls counts data operations received.
func (s *Server) DataCalls() int64 { return s.dataCalls.Load() }

// SignOuts counts signOut calls.
func (s *Server) SignOuts() int64 { return s.signOuts.Load() }

// HoldRenewals makes refreshSession block until the returned function runs.
func (s *Server) HoldRenewals() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.renewGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.renewGate == gate {
				s.renewGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// SetDataFault scripts data operations: fn receives the 1-based call number
// and returns an error code to answer with, or "" to succeed.
func (s *Server) SetDataFault(fn func(call int) string) {
	s.mu.Lock()
	s.dataFault = fn
	s.mu.Unlock()
}

// RevokeAccess rejects every access credential issued so far.
func (s *Server) RevokeAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.access {
		s.revoked[token] = true
	}
}

// RevokeRenewals invalidates every outstanding renewal credential.
func (s *Server) RevokeRenewals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// IssuePayload mints a session for email without going through signIn.
func (s *Server) IssuePayload(email string) (credential.Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return credential.Payload{}, false
	}
	p, err := s.issueLocked(u)
	if err != nil {
		return credential.Payload{}, false
	}
	exp, _ := time.Parse(time.RFC3339, p.ExpiresAt)
	return credential.Payload{
		AccessCredential:  p.AccessToken,
		RenewalCredential: p.RefreshToken,
		ExpiresAt:         exp,
		Identity:          p.User,
		Customer:          p.Customer,
		Permissions:       p.Permissions,
	}, true
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type payloadJSON struct {
	AccessToken  string                      `json:"accessToken"`
	RefreshToken string                      `json:"refreshToken"`
	ExpiresAt    string                      `json:"expiresAt,omitempty"`
	User         *credential.Identity        `json:"user"`
	Customer     *credential.CustomerSummary `json:"customer"`
	Permissions  []string                    `json:"permissions"`
}

func (s *Server) issueLocked(u *User) (payloadJSON, error) {
	access, exp, err := s.issuer.Issue(u.Identity.ID, u.Identity.TenantID)
	if err != nil {
		return payloadJSON{}, err
	}
	refresh := uuid.NewString()
	email := strings.ToLower(u.Identity.Email)
	s.refresh[refresh] = email
	s.access[access] = grant{email: email, refresh: refresh}

	id := u.Identity
	cust := u.Customer
	p := payloadJSON{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &id,
		Customer:     &cust,
		Permissions:  append([]string{}, u.Permissions...),
	}
	if !s.cfg.OmitExpiresAt {
		p.ExpiresAt = exp.UTC().Format(time.RFC3339)
	}
	return p, nil
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", "BAD_REQUEST")
		return
	}

	switch req.OperationName {
	case "SignIn":
		s.signIn(w, req)
	case "SignUp":
		s.signUp(w, req)
	case "RefreshSession":
		s.refreshSession(w, r, req)
	case "SignOut":
		s.signOut(w, r)
	default:
		s.data(w, r, req)
	}
}

func (s *Server) signIn(w http.ResponseWriter, req gqlRequest) {
	input, _ := req.Variables["input"].(map[string]any)
	email := strings.ToLower(str(input["email"]))

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	switch {
	case !ok || u.Password != str(input["password"]):
		writeError(w, http.StatusOK, "invalid email or password", "INVALID_CREDENTIALS")
		return
	case u.Locked:
		writeError(w, http.StatusOK, "account locked", "ACCOUNT_LOCKED")
		return
	case !u.Identity.IsEmailVerified:
		writeError(w, http.StatusOK, "email not verified", "EMAIL_NOT_VERIFIED")
		return
	case u.MFACode != "" && u.MFACode != str(input["mfaCode"]):
		writeError(w, http.StatusOK, "mfa code required", "MFA_REQUIRED")
		return
	}

	p, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}
	writeData(w, map[string]any{"signIn": p})
}

func (s *Server) signUp(w http.ResponseWriter, req gqlRequest) {
	input, _ := req.Variables["input"].(map[string]any)
	email := strings.ToLower(str(input["email"]))
	code := str(input["customerCode"])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists || email == "" {
		writeError(w, http.StatusOK, "account already exists", "BAD_USER_INPUT")
		return
	}
	var customer credential.CustomerSummary
	for _, u := range s.users {
		if u.Customer.Code == code {
			customer = u.Customer
			break
		}
	}
	if customer.Code == "" {
		writeError(w, http.StatusOK, "unknown customer", "BAD_USER_INPUT")
		return
	}

	u := &User{
		Identity: credential.Identity{
			ID:              uuid.NewString(),
			TenantID:        customer.ID,
			Email:           email,
			FirstName:       str(input["firstName"]),
			LastName:        str(input["lastName"]),
			Role:            "member",
			IsEmailVerified: true,
		},
		Customer: customer,
		Password: str(input["password"]),
	}
	s.users[email] = u

	p, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}
	writeData(w, map[string]any{"signUp": p})
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request, req gqlRequest) {
	s.renewals.Add(1)

	s.mu.Lock()
	gate := s.renewGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	token := str(req.Variables["refreshToken"])

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.refresh[token]
	if !ok {
		writeError(w, http.StatusOK, "refresh token invalid or expired", "INVALID_REFRESH_TOKEN")
		return
	}
	delete(s.refresh, token)
	u, ok := s.users[email]
	if !ok {
		writeError(w, http.StatusOK, "user removed", "INVALID_REFRESH_TOKEN")
		return
	}

	p, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}
	writeData(w, map[string]any{"refreshSession": p})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	s.signOuts.Add(1)
	token := bearer(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.access[token]
	if !ok {
		writeError(w, http.StatusOK, "not signed in", "UNAUTHENTICATED")
		return
	}
	delete(s.refresh, g.refresh)
	s.revoked[token] = true
	writeData(w, map[string]any{"signOut": true})
}

func (s *Server) data(w http.ResponseWriter, r *http.Request, req gqlRequest) {
	call := int(s.dataCalls.Add(1))

	s.mu.Lock()
	fault := s.dataFault
	s.mu.Unlock()
	if fault != nil {
		if code := fault(call); code != "" {
			writeError(w, http.StatusOK, "scripted fault", code)
			return
		}
	}

	token := bearer(r)
	claims, err := s.issuer.Verify(token)
	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if err != nil || revoked {
		writeError(w, http.StatusOK, "access credential invalid or expired", "UNAUTHENTICATED")
		return
	}
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != claims.TID {
		writeError(w, http.StatusOK, "tenant does not match credential", "FORBIDDEN")
		return
	}

	writeData(w, map[string]any{"echo": map[string]any{
		"operation": req.OperationName,
		"tenant":    claims.TID,
		"user":      claims.UserID(),
	}})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"errors": []map[string]any{{
			"message":    msg,
			"extensions": map[string]any{"code": code},
		}},
	})
}
