package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"mywallet/internal/models"
	"mywallet/internal/storage"
	"mywallet/internal/wallet"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	wallet  *wallet.Service
	pingers []storage.Pinger
}

// NewHandlers creates a new Handlers instance. The pingers back the
// readiness probe.
func NewHandlers(svc *wallet.Service, pingers ...storage.Pinger) *Handlers {
	return &Handlers{wallet: svc, pingers: pingers}
}

// Routes registers every endpoint on a new mux.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /cadastro", h.Register)
	mux.HandleFunc("POST /{$}", h.Login)
	mux.Handle("GET /{$}", h.AuthMiddleware(http.HandlerFunc(h.Me)))
	mux.Handle("POST /nova-transacao/{tipo}", h.AuthMiddleware(http.HandlerFunc(h.CreateTransaction)))
	mux.Handle("GET /home", h.AuthMiddleware(http.HandlerFunc(h.Home)))
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	return mux
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(models.User)
	return user, ok
}

// AuthMiddleware wraps handlers to require a bearer token. The token must
// resolve to a session and the session to an existing user; otherwise the
// response is a bare 401.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))

		user, err := h.wallet.Authenticate(r.Context(), token)
		if err != nil {
			h.fail(w, "authenticate", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register handles account creation.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in wallet.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, "register", err)
		return
	}

	if _, err := h.wallet.Register(r.Context(), in); err != nil {
		h.fail(w, "register", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in wallet.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, "login", err)
		return
	}

	token, err := h.wallet.Login(r.Context(), in)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// Me returns the authenticated user. The password hash is never serialized.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateTransaction records an input or output for the authenticated user.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var in wallet.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	in.Kind = r.PathValue("tipo")

	if _, err := h.wallet.AddTransaction(r.Context(), user, in); err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type transactionView struct {
	Description string      `json:"description"`
	Value       json.Number `json:"value"`
	Kind        models.Kind `json:"kind"`
	Date        time.Time   `json:"date"`
}

type homeResponse struct {
	Name         string            `json:"name"`
	Transactions []transactionView `json:"transactions"`
	Balance      json.Number       `json:"balance"`
}

// Home returns the user's transactions, newest first, and the balance.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	history, err := h.wallet.History(r.Context(), user)
	if err != nil {
		h.fail(w, "home", err)
		return
	}

	views := make([]transactionView, 0, len(history.Transactions))
	for _, tx := range history.Transactions {
		views = append(views, transactionView{
			Description: tx.Description,
			Value:       json.Number(tx.Value.String()),
			Kind:        tx.Kind,
			Date:        tx.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, homeResponse{
		Name:         history.Name,
		Transactions: views,
		Balance:      json.Number(history.Balance.String()),
	})
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings every backend.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "not_ready",
				"details": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// fail maps an error to a plain-text response.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	var ve *wallet.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, wallet.ErrEmailTaken):
		http.Error(w, "Email already registered", http.StatusConflict)
	case errors.Is(err, wallet.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, wallet.ErrInvalidPassword):
		http.Error(w, "Invalid password", http.StatusUnauthorized)
	case errors.Is(err, wallet.ErrUnauthenticated):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, errBodyTooLarge):
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
	default:
		log.Printf("%s error: %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return &wallet.ValidationError{Problems: []string{"request body is required"}}
		}
		return &wallet.ValidationError{Problems: []string{"invalid JSON payload"}}
	}
	return nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
