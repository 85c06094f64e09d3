package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/comments"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	// /api/tasks/{taskId}/comments
	if len(parts) == 4 && parts[1] == "tasks" && parts[3] == "comments" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.handleListComments(w, r, session, parts[2])
		case http.MethodPost:
			s.handleCreateComment(w, r, session, parts[2])
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "notifications" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		s.handleListNotifications(w, r, session)
		return
	}

	// /api/notifications/{id}/read
	if r.Method == http.MethodPost && len(parts) == 4 && parts[1] == "notifications" && parts[3] == "read" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if err := s.service.MarkNotificationRead(r.Context(), session, parts[2]); err != nil {
			writeDomainError(w, asDomainError(err))
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"id": parts[2], "read": true})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "search" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		query := r.URL.Query()
		limit := parseIntDefault(query.Get("limit"), 20)
		offset := parseIntDefault(query.Get("offset"), 0)
		writeSuccess(w, http.StatusOK, s.service.Search(r.Context(), session, query.Get("q"), limit, offset))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	threads, err := s.service.CommentTree(r.Context(), session, taskID)
	if err != nil {
		writeDomainError(w, asDomainError(err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"taskId": taskID, "threads": threads})
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	var input CommentInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	comment, err := s.service.SubmitComment(r.Context(), session, taskID, input)
	if err != nil {
		writeDomainError(w, asDomainError(err))
		return
	}
	writeSuccess(w, http.StatusCreated, toCommentResponse(comment))
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request, session Session) {
	query := r.URL.Query()
	unreadOnly := query.Get("unread") == "true"
	limit := parseIntDefault(query.Get("limit"), 50)

	items, unread, err := s.service.Notifications(r.Context(), session, unreadOnly, limit)
	if err != nil {
		writeDomainError(w, asDomainError(err))
		return
	}
	notifications := make([]notificationResponse, 0, len(items))
	for _, item := range items {
		notifications = append(notifications, toNotificationResponse(item))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"notifications": notifications, "unread": unread})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeDomainError(w, errUnauthorized)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if isAuthError(err) {
			writeDomainError(w, errUnauthorized)
			return Session{}, false
		}
		log.Printf("session lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

type commentResponse struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	Author          string    `json:"author"`
	AuthorName      string    `json:"authorName"`
	AuthorAvatar    string    `json:"authorAvatar"`
	CreatedAt       time.Time `json:"createdAt"`
	Type            string    `json:"type"`
	ParentCommentID *string   `json:"parentCommentId"`
}

func toCommentResponse(c comments.Comment) commentResponse {
	resp := commentResponse{
		ID:           c.ID,
		Content:      c.Content,
		Author:       c.Author,
		AuthorName:   c.AuthorName,
		AuthorAvatar: c.AuthorAvatar,
		CreatedAt:    c.CreatedAt,
		Type:         c.Type,
	}
	if c.ParentCommentID != "" {
		parent := c.ParentCommentID
		resp.ParentCommentID = &parent
	}
	return resp
}

type notificationResponse struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	TaskTitle string     `json:"taskTitle"`
	CommentID string     `json:"commentId,omitempty"`
	ActorID   string     `json:"actorId"`
	ActorName string     `json:"actorName"`
	Excerpt   string     `json:"excerpt"`
	Kind      string     `json:"kind"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toNotificationResponse(n store.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		TaskID:    n.TaskID,
		TaskTitle: n.TaskTitle,
		CommentID: n.CommentID,
		ActorID:   n.ActorID,
		ActorName: n.ActorName,
		Excerpt:   n.Excerpt,
		Kind:      n.Kind,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeDomainError(w http.ResponseWriter, err *DomainError) {
	writeError(w, err.Status, err.Code, err.Message, err.Details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseIntDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
