package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ruteri/watchstate/db"
	"github.com/ruteri/watchstate/interfaces"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Handler serves the watch-state JSON API on top of a db.Manager.
type Handler struct {
	mgr *db.Manager
	log *slog.Logger
}

// NewHandler creates a new HTTP request handler.
func NewHandler(mgr *db.Manager, log *slog.Logger) *Handler {
	return &Handler{
		mgr: mgr,
		log: log,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

// HandleRegisterUser creates a user.
//
// URL format: POST /api/users
// Request body: {"username": "...", "password": "..."}
// Responds 409 if the user already exists.
func (h *Handler) HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.requestFailed(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	exists, err := h.mgr.CheckUserExist(r.Context(), req.Username)
	if err != nil {
		h.storageFailed(w, "check user", err)
		return
	}
	if exists {
		http.Error(w, "user already exists", http.StatusConflict)
		return
	}

	if err := h.mgr.RegisterUser(r.Context(), req.Username, req.Password); err != nil {
		h.storageFailed(w, "register user", err)
		return
	}
	h.log.Info("User registered", slog.String("user", req.Username))
	w.WriteHeader(http.StatusCreated)
}

// HandleLogin checks a user's credentials.
//
// URL format: POST /api/login
// Response: {"ok": bool}
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.requestFailed(w, err)
		return
	}

	ok, err := h.mgr.VerifyUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.storageFailed(w, "verify user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.mgr.GetAllUsers(r.Context())
	if err != nil {
		h.storageFailed(w, "list users", err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// HandleUserExists responds {"exists": bool}.
func (h *Handler) HandleUserExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.mgr.CheckUserExist(r.Context(), pathParam(r, "user"))
	if err != nil {
		h.storageFailed(w, "check user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// HandleChangePassword replaces the password of an existing user.
//
// URL format: PUT /api/users/{user}/password
// Request body: {"password": "..."}
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.requestFailed(w, err)
		return
	}
	if req.Password == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}

	if err := h.mgr.ChangePassword(r.Context(), pathParam(r, "user"), req.Password); err != nil {
		h.storageFailed(w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteUser removes the user together with all of its data.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")
	if err := h.mgr.DeleteUser(r.Context(), user); err != nil {
		h.storageFailed(w, "delete user", err)
		return
	}
	h.log.Info("User deleted", slog.String("user", user))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListPlayRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.mgr.GetAllPlayRecords(r.Context(), pathParam(r, "user"))
	if err != nil {
		h.storageFailed(w, "list play records", err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *Handler) HandleGetPlayRecord(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	record, err := h.mgr.GetPlayRecord(r.Context(), user, source, id)
	if err != nil {
		h.storageFailed(w, "get play record", err)
		return
	}
	h.writeFound(w, record, record != nil)
}

func (h *Handler) HandlePutPlayRecord(w http.ResponseWriter, r *http.Request) {
	var record interfaces.PlayRecord
	if err := decodeBody(w, r, &record); err != nil {
		h.requestFailed(w, err)
		return
	}

	user, source, id := itemParams(r)
	if err := h.mgr.SavePlayRecord(r.Context(), user, source, id, record); err != nil {
		h.storageFailed(w, "save play record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeletePlayRecord(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	if err := h.mgr.DeletePlayRecord(r.Context(), user, source, id); err != nil {
		h.storageFailed(w, "delete play record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.mgr.GetAllFavorites(r.Context(), pathParam(r, "user"))
	if err != nil {
		h.storageFailed(w, "list favorites", err)
		return
	}
	h.writeJSON(w, http.StatusOK, favorites)
}

func (h *Handler) HandleGetFavorite(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	favorite, err := h.mgr.GetFavorite(r.Context(), user, source, id)
	if err != nil {
		h.storageFailed(w, "get favorite", err)
		return
	}
	h.writeFound(w, favorite, favorite != nil)
}

// HandleFavoriteStatus responds {"favorited": bool}.
func (h *Handler) HandleFavoriteStatus(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	favorited, err := h.mgr.IsFavorited(r.Context(), user, source, id)
	if err != nil {
		h.storageFailed(w, "check favorite", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

func (h *Handler) HandlePutFavorite(w http.ResponseWriter, r *http.Request) {
	var favorite interfaces.Favorite
	if err := decodeBody(w, r, &favorite); err != nil {
		h.requestFailed(w, err)
		return
	}

	user, source, id := itemParams(r)
	if err := h.mgr.SaveFavorite(r.Context(), user, source, id, favorite); err != nil {
		h.storageFailed(w, "save favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	if err := h.mgr.DeleteFavorite(r.Context(), user, source, id); err != nil {
		h.storageFailed(w, "delete favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListSkipConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.mgr.GetAllSkipConfigs(r.Context(), pathParam(r, "user"))
	if err != nil {
		h.storageFailed(w, "list skip configs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, configs)
}

func (h *Handler) HandleGetSkipConfig(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	config, err := h.mgr.GetSkipConfig(r.Context(), user, source, id)
	if err != nil {
		h.storageFailed(w, "get skip config", err)
		return
	}
	h.writeFound(w, config, config != nil)
}

func (h *Handler) HandlePutSkipConfig(w http.ResponseWriter, r *http.Request) {
	var config interfaces.SkipConfig
	if err := decodeBody(w, r, &config); err != nil {
		h.requestFailed(w, err)
		return
	}

	user, source, id := itemParams(r)
	if err := h.mgr.SetSkipConfig(r.Context(), user, source, id, config); err != nil {
		h.storageFailed(w, "save skip config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteSkipConfig(w http.ResponseWriter, r *http.Request) {
	user, source, id := itemParams(r)
	if err := h.mgr.DeleteSkipConfig(r.Context(), user, source, id); err != nil {
		h.storageFailed(w, "delete skip config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetSearchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.mgr.GetSearchHistory(r.Context(), pathParam(r, "user"))
	if err != nil {
		h.storageFailed(w, "get search history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// HandleAddSearchHistory records a keyword.
//
// URL format: POST /api/users/{user}/searchhistory
// Request body: {"keyword": "..."}
func (h *Handler) HandleAddSearchHistory(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.requestFailed(w, err)
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		http.Error(w, "keyword is required", http.StatusBadRequest)
		return
	}

	if err := h.mgr.AddSearchHistory(r.Context(), pathParam(r, "user"), req.Keyword); err != nil {
		h.storageFailed(w, "add search history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteSearchHistory removes ?keyword=, or the whole history without it.
func (h *Handler) HandleDeleteSearchHistory(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if err := h.mgr.DeleteSearchHistory(r.Context(), pathParam(r, "user"), keyword); err != nil {
		h.storageFailed(w, "delete search history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetAdminConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.mgr.GetAdminConfig(r.Context())
	if err != nil {
		h.storageFailed(w, "get admin config", err)
		return
	}
	h.writeFound(w, config, config != nil)
}

func (h *Handler) HandlePutAdminConfig(w http.ResponseWriter, r *http.Request) {
	var config interfaces.AdminConfig
	if err := decodeBody(w, r, &config); err != nil {
		h.requestFailed(w, err)
		return
	}

	if err := h.mgr.SaveAdminConfig(r.Context(), config); err != nil {
		h.storageFailed(w, "save admin config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearAllData wipes every user and the admin config.
func (h *Handler) HandleClearAllData(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.ClearAllData(r.Context()); err != nil {
		h.storageFailed(w, "clear all data", err)
		return
	}
	h.log.Warn("All data cleared", slog.String("backend_name", h.mgr.StorageName()))
	w.WriteHeader(http.StatusNoContent)
}

// HandleStorageInfo responds {"name": ...} naming the active backend.
func (h *Handler) HandleStorageInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"name": h.mgr.StorageName()})
}

// decodeBody reads a JSON request body of at most maxBodySize bytes into dest.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: err}
		}
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}
	if len(data) == 0 {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("empty request body")}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

func (h *Handler) requestFailed(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// storageFailed reports a backend error. Details stay in the log.
func (h *Handler) storageFailed(w http.ResponseWriter, op string, err error) {
	h.log.Error("Storage operation failed",
		slog.String("op", op),
		slog.String("backend_name", h.mgr.StorageName()),
		"err", err)
	http.Error(w, "storage error", http.StatusInternalServerError)
}

func (h *Handler) writeFound(w http.ResponseWriter, v any, found bool) {
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// pathParam returns the decoded path parameter. The router matches on the raw
// path when the request path carries escapes, and leaves them in the value.
func pathParam(r *http.Request, name string) string {
	value := r.PathValue(name)
	if r.URL.RawPath == "" {
		return value
	}
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}

func itemParams(r *http.Request) (user, source, id string) {
	return pathParam(r, "user"), pathParam(r, "source"), pathParam(r, "id")
}
