package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/service"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger     *slog.Logger
	timeline   *service.TimelineService
	imports    *service.ImportService
	takeoutDir string
}

// NewAPIHandlers constructs an APIHandlers instance. Imports read the takeout
// tree under takeoutDir.
func NewAPIHandlers(logger *slog.Logger, timeline *service.TimelineService, imports *service.ImportService, takeoutDir string) *APIHandlers {
	return &APIHandlers{
		logger:     logger,
		timeline:   timeline,
		imports:    imports,
		takeoutDir: takeoutDir,
	}
}

func (h *APIHandlers) handleInitDB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := h.timeline.InitSchema(r.Context()); err != nil {
		h.writeServiceError(w, err, "failed to initialise schema")
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *APIHandlers) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createUser(w, r)
	case http.MethodGet:
		h.listUsers(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	values, err := requestValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.timeline.CreateUser(r.Context(), values["uname"])
	if err != nil {
		h.writeServiceError(w, err, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, userResponse{ID: user.ID, Name: user.Name})
}

func (h *APIHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.timeline.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list users")
		return
	}
	resp := usersResponse{Users: make([]userResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, userResponse{ID: u.ID, Name: u.Name})
	}
	respondJSON(w, http.StatusOK, resp)
}

type importFunc func(ctx context.Context, userID int64, root string) (service.ImportReport, error)

func (h *APIHandlers) handleImportPayments(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, "payments", h.imports.ImportPayments)
}

func (h *APIHandlers) handleImportLocationHistory(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, "location history", h.imports.ImportLocationHistory)
}

func (h *APIHandlers) handleImportTakeout(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, "takeout", h.imports.ImportTakeout)
}

func (h *APIHandlers) runImport(w http.ResponseWriter, r *http.Request, kind string, run importFunc) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	values, err := requestValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseUserID(values["user_id"])
	if err != nil {
		h.writeServiceError(w, err, "invalid user id")
		return
	}

	report, err := run(r.Context(), userID, h.takeoutDir)
	resp := newImportResponse(report)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("import failed", "kind", kind, "user_id", userID, "error", err)
			resp.Error = "failed to import " + kind
		} else {
			resp.Error = err.Error()
		}
		respondJSON(w, status, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) handleDayTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	query := r.URL.Query()
	userID, err := parseUserID(query.Get("userId"))
	if err != nil {
		h.writeServiceError(w, err, "invalid user id")
		return
	}
	day, err := service.ParseDay(query.Get("date"))
	if err != nil {
		h.writeServiceError(w, err, "invalid date")
		return
	}

	entries, err := h.timeline.DayTimeline(r.Context(), userID, day, query.Get("paymentType"))
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch timeline", "user_id", userID)
		return
	}

	resp := dayTimelineResponse{
		UserID:  userID,
		Date:    day.Format("2006-01-02"),
		Entries: make([]timelineEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

// writeServiceError answers with the status matching err. Client errors echo
// the cause; server errors are logged and answered with msg only.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(attrs, "error", err)...)
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsFatalParse(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestValues reads parameters from a JSON object body or from form and
// query values.
func requestValues(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form: %w", err)
		}
		values := make(map[string]string, len(r.Form))
		for key := range r.Form {
			values[key] = r.Form.Get(key)
		}
		return values, nil
	}

	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	values := make(map[string]string, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case string:
			values[key] = val
		case json.Number:
			values[key] = val.String()
		case nil:
		default:
			values[key] = fmt.Sprint(val)
		}
	}
	return values, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	return decoder.Decode(dst)
}

func parseUserID(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user id must be a positive integer", domain.ErrValidation)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
