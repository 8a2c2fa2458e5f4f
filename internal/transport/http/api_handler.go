package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// APIHandler exposes the caller-facing JSON operations. Caller identity
// arrives in the X-Learner-ID header; resolving it from credentials is an
// upstream concern.
type APIHandler struct {
	sessions   *app.SessionService
	challenges *app.ChallengeService
	streaks    *app.StreakService
}

func NewAPIHandler(sessions *app.SessionService, challenges *app.ChallengeService, streaks *app.StreakService) *APIHandler {
	return &APIHandler{sessions: sessions, challenges: challenges, streaks: streaks}
}

// Register mounts all routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /api/sessions/{id}/responses", h.submitResponse)
	mux.HandleFunc("POST /api/sessions/{id}/skip", h.skipQuestion)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.endSession)
	mux.HandleFunc("GET /api/challenges/{date}", h.challengeData)
	mux.HandleFunc("POST /api/challenges/{id}/start", h.startChallenge)
	mux.HandleFunc("POST /api/challenges/{id}/complete", h.completeChallenge)
	mux.HandleFunc("POST /api/streak/login", h.streakLogin)
	mux.HandleFunc("POST /api/streak/freeze", h.streakFreeze)
	mux.HandleFunc("POST /api/streak/goal", h.streakGoal)
}

type createSessionRequest struct {
	TemplateID    string   `json:"templateId,omitempty"`
	Kind          string   `json:"kind,omitempty"`
	QuestionLimit int      `json:"questionLimit,omitempty"`
	TopicIDs      []string `json:"topicIds,omitempty"`
}

type createSessionResponse struct {
	SessionID string                   `json:"sessionId"`
	Questions []domain.SessionQuestion `json:"questions"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.sessions.Create(r.Context(), learnerID, app.CreateParams{
		TemplateID:    req.TemplateID,
		Kind:          domain.AssessmentKind(req.Kind),
		QuestionLimit: req.QuestionLimit,
		TopicIDs:      req.TopicIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	_, order, err := h.sessions.Get(r.Context(), learnerID, sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID, Questions: order})
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	sess, order, err := h.sessions.Get(r.Context(), learnerID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "questions": order})
}

type submitRequest struct {
	QuestionID string               `json:"questionId"`
	Value      domain.ResponseValue `json:"value"`
	FreeText   string               `json:"freeText,omitempty"`
	StartedAt  time.Time            `json:"startedAt,omitempty"`
	HintsUsed  int                  `json:"hintsUsed,omitempty"`
	Confidence int                  `json:"confidence,omitempty"`
}

func (h *APIHandler) submitResponse(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		http.Error(w, "questionId is required", http.StatusBadRequest)
		return
	}
	out, err := h.sessions.Submit(r.Context(), learnerID, app.SubmitParams{
		SessionID:  r.PathValue("id"),
		QuestionID: req.QuestionID,
		Value:      req.Value,
		FreeText:   req.FreeText,
		StartedAt:  req.StartedAt,
		HintsUsed:  req.HintsUsed,
		Confidence: req.Confidence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) skipQuestion(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req struct {
		QuestionID string `json:"questionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.sessions.Skip(r.Context(), learnerID, r.PathValue("id"), req.QuestionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) endSession(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.sessions.End(r.Context(), learnerID, r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": sess})
}

func (h *APIHandler) challengeData(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	date, err := parseDate(r.PathValue("date"))
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD or 'today'", http.StatusBadRequest)
		return
	}
	data, err := h.challenges.Data(r.Context(), learnerID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type challengeStartRequest struct {
	Date string `json:"date"`
}

func (h *APIHandler) startChallenge(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req challengeStartRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	sess, err := h.challenges.Start(r.Context(), learnerID, r.PathValue("id"), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

type challengeCompleteRequest struct {
	SessionID string `json:"sessionId"`
	Date      string `json:"date"`
}

func (h *APIHandler) completeChallenge(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req challengeCompleteRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	result, err := h.challenges.Complete(r.Context(), learnerID, req.SessionID, r.PathValue("id"), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) streakLogin(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	result, err := h.streaks.RecordLogin(r.Context(), learnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) streakFreeze(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	row, err := h.streaks.UseFreeze(r.Context(), learnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *APIHandler) streakGoal(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := learner(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	row, err := h.streaks.AddGoalProgress(r.Context(), learnerID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func learner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Learner-ID")
	if id == "" {
		http.Error(w, "missing X-Learner-ID header", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// parseDate accepts YYYY-MM-DD or the literal "today".
func parseDate(raw string) (time.Time, error) {
	if raw == "" || raw == "today" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrChallengeNotFound),
		errors.Is(err, domain.ErrTemplateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrSessionNotCompleted),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrSkipNotAllowed),
		errors.Is(err, domain.ErrNoFreezesAvailable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoQuestionsAvailable):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
