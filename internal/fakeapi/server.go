// Package fakeapi is an in-memory implementation of the Product Showcase API.
// Tests run it behind httptest to exercise the client end to end.
package fakeapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"

	maxUploadMemory = 10 << 20
)

// Product is the server-side product record
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Stock       int     `json:"stock"`
	Rating      float64 `json:"rating"`
	ImagePath   *string `json:"image_path"`
	CreatedAt   string  `json:"created_at"`
}

type user struct {
	ID    int64   `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	hash  []byte
}

type upload struct {
	contentType string
	data        []byte
}

// Request is a record of a call the server received
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Form          url.Values // multipart or urlencoded fields
	Files         []string   // multipart file field names
	Authorization string
}

// Server holds all state in memory; it is safe for concurrent use
type Server struct {
	router *mux.Router

	mu            sync.Mutex
	products      map[int64]*Product
	users         map[int64]*user
	tokens        map[string]string // token -> email it was issued for
	uploads       map[string]upload
	requests      []Request
	nextProductID int64
	nextUserID    int64
	nextUpload    int
	failNext      int
}

// New returns a server seeded with the admin account
func New() *Server {
	s := &Server{
		products: make(map[int64]*Product),
		users:    make(map[int64]*user),
		tokens:   make(map[string]string),
		uploads:  make(map[string]upload),
	}
	s.AddUser(AdminEmail, "", AdminPassword)

	r := mux.NewRouter()
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/products", s.handleListProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products", s.requireAuth(s.handleCreateProduct)).Methods(http.MethodPost)
	r.HandleFunc("/api/products/{id:[0-9]+}", s.handleGetProduct).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id:[0-9]+}", s.requireAuth(s.handleUpdateProduct)).Methods(http.MethodPut)
	r.HandleFunc("/api/products/{id:[0-9]+}", s.requireAuth(s.handleDeleteProduct)).Methods(http.MethodDelete)
	r.HandleFunc("/api/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/change-password", s.requireAuth(s.handleChangePassword)).Methods(http.MethodPost)
	r.HandleFunc("/api/users", s.requireAuth(s.handleListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/api/users", s.requireAuth(s.handleCreateUser)).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{id:[0-9]+}", s.requireAuth(s.handleUpdateUser)).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{id:[0-9]+}", s.requireAuth(s.handleDeleteUser)).Methods(http.MethodDelete)
	r.HandleFunc("/api/profile", s.requireAuth(s.handleUpdateProfile)).Methods(http.MethodPut)
	r.HandleFunc("/uploads/{name}", s.handleUpload).Methods(http.MethodGet)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.record(r)

	s.mu.Lock()
	status := s.failNext
	s.failNext = 0
	s.mu.Unlock()
	if status != 0 {
		writeError(w, http.StatusText(status), status)
		return
	}

	s.router.ServeHTTP(w, r)
}

// AddUser creates an account and returns its id
func (s *Server) AddUser(email, name, password string) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := &user{ID: s.nextUserID, Email: email, hash: hash}
	if name != "" {
		u.Name = &name
	}
	s.users[u.ID] = u
	return u.ID
}

// AddProduct seeds a product and returns its id
func (s *Server) AddProduct(p Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	p.ID = s.nextProductID
	if p.CreatedAt == "" {
		p.CreatedAt = now()
	}
	s.products[p.ID] = &p
	return p.ID
}

// Product returns a copy of the stored product
func (s *Server) Product(id int64) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// Upload returns a stored image by its served path, e.g. /uploads/x.png
func (s *Server) Upload(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[strings.TrimPrefix(path, "/uploads/")]
	return u.data, ok
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request matching method and path
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// RevokeTokens invalidates every issued token
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// FailNext makes the next request fail with status
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = status
}

func (s *Server) record(r *http.Request) {
	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadMemory); err == nil {
			req.Form = url.Values(r.MultipartForm.Value)
			for field := range r.MultipartForm.File {
				req.Files = append(req.Files, field)
			}
			sort.Strings(req.Files)
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err == nil {
			req.Form = r.PostForm
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

type authedHandler func(w http.ResponseWriter, r *http.Request, current *user)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		email, issued := s.tokens[token]
		current := s.userByEmail(email)
		s.mu.Unlock()

		// tokens are scoped to the email they were issued for
		if !issued || current == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, "Could not validate credentials", http.StatusUnauthorized)
			return
		}
		next(w, r, current)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, "Invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	s.mu.Lock()
	u := s.userByEmail(username)
	s.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, "Incorrect username or password", http.StatusUnauthorized)
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = u.Email
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// userByEmail must be called with s.mu held
func (s *Server) userByEmail(email string) *user {
	if email == "" {
		return nil
	}
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"detail": message})
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeValidation(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}
