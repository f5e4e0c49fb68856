package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"disputeflow/auth"
	"disputeflow/dealer"
	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/participant"
	"disputeflow/template"
	"disputeflow/timeline"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Identity, error)
}

type caseService interface {
	File(ctx context.Context, params disputecase.FileParams) (disputecase.Case, error)
	Acknowledge(ctx context.Context, caseID string, actor disputecase.Actor) (disputecase.Case, error)
	AssignMediator(ctx context.Context, caseID, mediatorID, mediatorName string, actor disputecase.Actor) (disputecase.Case, error)
	Escalate(ctx context.Context, caseID, reason string, actor disputecase.Actor) (disputecase.Case, error)
	Resolve(ctx context.Context, caseID, resolutionType, summary string, actor disputecase.Actor) (disputecase.Case, error)
	Close(ctx context.Context, caseID, reason string, actor disputecase.Actor) (disputecase.Case, error)
	ReferToProConsumidor(ctx context.Context, caseID, reason string, actor disputecase.Actor) (disputecase.Case, error)
	OverrideStatus(ctx context.Context, caseID string, newStatus disputecase.Status, reason string, actor disputecase.Actor) (disputecase.Case, error)
	Get(ctx context.Context, caseID string) (disputecase.Case, error)
}

type evidenceService interface {
	Submit(ctx context.Context, params evidence.SubmitParams) (evidence.Record, error)
	Review(ctx context.Context, params evidence.ReviewParams) (evidence.Record, error)
	ListByDispute(ctx context.Context, disputeID string) ([]evidence.Record, error)
}

type mediationService interface {
	Schedule(ctx context.Context, params mediation.ScheduleParams) (mediation.Session, error)
	Start(ctx context.Context, sessionID, actorID, actorName string) (mediation.Session, error)
	Complete(ctx context.Context, params mediation.CompleteParams) (mediation.Session, error)
	Cancel(ctx context.Context, sessionID, reason, actorID, actorName string) (mediation.Session, error)
	ListByDispute(ctx context.Context, disputeID string) ([]mediation.Session, error)
}

type participantService interface {
	Add(ctx context.Context, params participant.AddParams) (participant.Participant, error)
	Remove(ctx context.Context, participantID, actorID, actorName, actorRole string) (participant.Participant, error)
	ListByDispute(ctx context.Context, disputeID string) ([]participant.Participant, error)
}

type timelineReader interface {
	ListByDispute(ctx context.Context, disputeID string) ([]timeline.Event, error)
}

type dealerService interface {
	GetByID(ctx context.Context, id string) (dealer.Profile, error)
	List(ctx context.Context, limit int) ([]dealer.Profile, error)
}

type templateStore interface {
	Lookup(ctx context.Context, disputeType, resolutionType string) (template.Template, error)
	ListByDisputeType(ctx context.Context, disputeType string) ([]template.Template, error)
	Upsert(ctx context.Context, t template.Template) (template.Template, error)
}

// Server is the REST boundary over the dispute workflow services.
type Server struct {
	logger       *zap.Logger
	auth         authService
	cases        caseService
	evidence     evidenceService
	mediation    mediationService
	participants participantService
	timeline     timelineReader
	dealers      dealerService
	templates    templateStore
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("POST /api/disputes", s.requireAuth(s.handleFileDispute))
	mux.Handle("GET /api/disputes/{id}", s.requireAuth(s.handleGetDispute))
	mux.Handle("GET /api/disputes/{id}/timeline", s.requireAuth(s.handleTimeline))
	mux.Handle("POST /api/disputes/{id}/acknowledge", s.requireAuth(s.handleAcknowledge))
	mux.Handle("POST /api/disputes/{id}/mediator", s.requireAuth(s.handleAssignMediator))
	mux.Handle("POST /api/disputes/{id}/escalate", s.requireAuth(s.handleEscalate))
	mux.Handle("POST /api/disputes/{id}/resolve", s.requireAuth(s.handleResolve))
	mux.Handle("POST /api/disputes/{id}/close", s.requireAuth(s.handleClose))
	mux.Handle("POST /api/disputes/{id}/refer", s.requireAuth(s.handleRefer))
	mux.Handle("POST /api/disputes/{id}/status-override", s.requireAuth(s.handleOverrideStatus))

	mux.Handle("POST /api/disputes/{id}/evidence", s.requireAuth(s.handleSubmitEvidence))
	mux.Handle("GET /api/disputes/{id}/evidence", s.requireAuth(s.handleListEvidence))
	mux.Handle("POST /api/evidence/{id}/review", s.requireAuth(s.handleReviewEvidence))

	mux.Handle("POST /api/disputes/{id}/sessions", s.requireAuth(s.handleScheduleSession))
	mux.Handle("GET /api/disputes/{id}/sessions", s.requireAuth(s.handleListSessions))
	mux.Handle("POST /api/sessions/{id}/start", s.requireAuth(s.handleStartSession))
	mux.Handle("POST /api/sessions/{id}/complete", s.requireAuth(s.handleCompleteSession))
	mux.Handle("POST /api/sessions/{id}/cancel", s.requireAuth(s.handleCancelSession))

	mux.Handle("POST /api/disputes/{id}/participants", s.requireAuth(s.handleAddParticipant))
	mux.Handle("GET /api/disputes/{id}/participants", s.requireAuth(s.handleListParticipants))
	mux.Handle("DELETE /api/participants/{id}", s.requireAuth(s.handleRemoveParticipant))

	mux.Handle("GET /api/dealers", s.requireAuth(s.handleDealers))
	mux.Handle("GET /api/dealers/{id}", s.requireAuth(s.handleDealer))

	mux.Handle("GET /api/disputes/{id}/resolution-templates", s.requireAuth(s.handleListTemplates))
	mux.Handle("PUT /api/resolution-templates", s.requireAuth(s.handleUpsertTemplate))

	return mux
}

// requireAuth verifies the bearer token and stashes the acting identity
// in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ident, err := s.auth.VerifyToken(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, ident)))
	})
}

func identityFrom(ctx context.Context) auth.Identity {
	ident, _ := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return ident
}

func actorFrom(ctx context.Context) disputecase.Actor {
	ident := identityFrom(ctx)
	return disputecase.Actor{ID: ident.UserID, Name: ident.Name, Role: string(ident.Role)}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user": map[string]any{
			"id":        result.User.ID,
			"email":     result.User.Email,
			"full_name": result.User.FullName,
			"role":      result.User.Role,
		},
	})
}

type fileDisputeRequest struct {
	Type            string  `json:"type"`
	Priority        string  `json:"priority"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	RespondentID    string  `json:"respondent_id"`
	RespondentName  string  `json:"respondent_name"`
	RespondentEmail string  `json:"respondent_email"`
	AmountCents     *int64  `json:"amount_cents"`
	Currency        *string `json:"currency"`
}

func (s *Server) handleFileDispute(w http.ResponseWriter, r *http.Request) {
	var req fileDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	c, err := s.cases.File(r.Context(), disputecase.FileParams{
		Type:        disputecase.Type(req.Type),
		Priority:    disputecase.Priority(req.Priority),
		Complainant: disputecase.Party{ID: ident.UserID, Name: ident.Name},
		Respondent:  disputecase.Party{ID: req.RespondentID, Name: req.RespondentName, Email: req.RespondentEmail},
		Title:       req.Title,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, caseResponseFrom(c))
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	c, err := s.cases.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.timeline.ListByDispute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, eventResponseFrom(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	c, err := s.cases.Acknowledge(r.Context(), r.PathValue("id"), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleAssignMediator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MediatorID   string `json:"mediator_id"`
		MediatorName string `json:"mediator_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := s.cases.AssignMediator(r.Context(), r.PathValue("id"), req.MediatorID, req.MediatorName, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	c, err := s.cases.Escalate(r.Context(), r.PathValue("id"), reason, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResolutionType string `json:"resolution_type"`
		Summary        string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Summary == "" && s.templates != nil {
		req.Summary = s.defaultSummary(r.Context(), r.PathValue("id"), req.ResolutionType)
	}
	c, err := s.cases.Resolve(r.Context(), r.PathValue("id"), req.ResolutionType, req.Summary, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	c, err := s.cases.Close(r.Context(), r.PathValue("id"), reason, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleRefer(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	c, err := s.cases.ReferToProConsumidor(r.Context(), r.PathValue("id"), reason, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

func (s *Server) handleOverrideStatus(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if ident.Role != auth.RoleAdmin {
		writeJSONError(w, http.StatusForbidden, "status override requires admin role")
		return
	}
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := s.cases.OverrideStatus(r.Context(), r.PathValue("id"), disputecase.Status(req.Status), req.Reason, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponseFrom(c))
}

type submitEvidenceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageKey  string `json:"storage_key"`
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	var req submitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	rec, err := s.evidence.Submit(r.Context(), evidence.SubmitParams{
		DisputeID:   r.PathValue("id"),
		Name:        req.Name,
		Description: req.Description,
		Kind:        evidence.Kind(req.Kind),
		File: evidence.FileMeta{
			Name:        req.FileName,
			ContentType: req.ContentType,
			SizeBytes:   req.SizeBytes,
			StorageKey:  req.StorageKey,
		},
		SubmitterID:   ident.UserID,
		SubmitterName: ident.Name,
		SubmitterRole: string(ident.Role),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evidenceResponseFrom(rec))
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	records, err := s.evidence.ListByDispute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]evidenceResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, evidenceResponseFrom(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleReviewEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	rec, err := s.evidence.Review(r.Context(), evidence.ReviewParams{
		EvidenceID:   r.PathValue("id"),
		Status:       evidence.ReviewStatus(req.Status),
		ReviewerID:   ident.UserID,
		ReviewerName: ident.Name,
		Notes:        req.Notes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evidenceResponseFrom(rec))
}

type scheduleSessionRequest struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Channel         string    `json:"channel"`
	Location        string    `json:"location"`
	MediatorID      string    `json:"mediator_id"`
	MediatorName    string    `json:"mediator_name"`
}

func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var req scheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	sess, err := s.mediation.Schedule(r.Context(), mediation.ScheduleParams{
		DisputeID:       r.PathValue("id"),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Channel:         mediation.Channel(req.Channel),
		Location:        req.Location,
		MediatorID:      req.MediatorID,
		MediatorName:    req.MediatorName,
		ActorID:         ident.UserID,
		ActorName:       ident.Name,
		ActorRole:       string(ident.Role),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponseFrom(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.mediation.ListByDispute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, sessionResponseFrom(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	sess, err := s.mediation.Start(r.Context(), r.PathValue("id"), ident.UserID, ident.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(sess))
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Summary             string `json:"summary"`
		Notes               string `json:"notes"`
		PartiesAgreed       bool   `json:"parties_agreed"`
		ComplainantAttended bool   `json:"complainant_attended"`
		RespondentAttended  bool   `json:"respondent_attended"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	sess, err := s.mediation.Complete(r.Context(), mediation.CompleteParams{
		SessionID:           r.PathValue("id"),
		Summary:             req.Summary,
		Notes:               req.Notes,
		PartiesAgreed:       req.PartiesAgreed,
		ComplainantAttended: req.ComplainantAttended,
		RespondentAttended:  req.RespondentAttended,
		ActorID:             ident.UserID,
		ActorName:           ident.Name,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(sess))
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	ident := identityFrom(r.Context())
	sess, err := s.mediation.Cancel(r.Context(), r.PathValue("id"), reason, ident.UserID, ident.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(sess))
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := identityFrom(r.Context())
	p, err := s.participants.Add(r.Context(), participant.AddParams{
		DisputeID: r.PathValue("id"),
		UserID:    req.UserID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      participant.Role(req.Role),
		ActorID:   ident.UserID,
		ActorName: ident.Name,
		ActorRole: string(ident.Role),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participantResponseFrom(p))
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	list, err := s.participants.ListByDispute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]participantResponse, 0, len(list))
	for _, p := range list {
		items = append(items, participantResponseFrom(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	p, err := s.participants.Remove(r.Context(), r.PathValue("id"), ident.UserID, ident.Name, string(ident.Role))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participantResponseFrom(p))
}

func (s *Server) handleDealers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	profiles, err := s.dealers.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]dealerResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, dealerResponseFrom(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleDealer(w http.ResponseWriter, r *http.Request) {
	p, err := s.dealers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dealerResponseFrom(p))
}

// defaultSummary renders the active resolution template for the case's
// dispute type. An empty string means no template applies and the
// resolution proceeds without a summary.
func (s *Server) defaultSummary(ctx context.Context, caseID, resolutionType string) string {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return ""
	}
	tpl, err := s.templates.Lookup(ctx, string(c.Type), resolutionType)
	if err != nil {
		return ""
	}
	return template.Render(tpl, map[string]string{
		"case_number":     c.CaseNumber,
		"complainant":     c.Complainant.Name,
		"respondent":      c.Respondent.Name,
		"resolution_type": resolutionType,
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	c, err := s.cases.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	templates, err := s.templates.ListByDisputeType(r.Context(), string(c.Type))
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		items = append(items, templateResponseFrom(tpl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if ident.Role != auth.RoleAdmin {
		writeJSONError(w, http.StatusForbidden, "template management requires admin role")
		return
	}
	var req struct {
		DisputeType    string `json:"dispute_type"`
		ResolutionType string `json:"resolution_type"`
		Title          string `json:"title"`
		Body           string `json:"body"`
		IsActive       *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tpl, err := s.templates.Upsert(r.Context(), template.Template{
		ID:             uuid.NewString(),
		DisputeType:    req.DisputeType,
		ResolutionType: req.ResolutionType,
		Title:          req.Title,
		Body:           req.Body,
		IsActive:       active,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templateResponseFrom(tpl))
}

func decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return req.Reason, true
}

// writeError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 and gets logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, disputecase.ErrNotFound),
		errors.Is(err, evidence.ErrNotFound),
		errors.Is(err, evidence.ErrCaseNotFound),
		errors.Is(err, mediation.ErrNotFound),
		errors.Is(err, mediation.ErrCaseNotFound),
		errors.Is(err, participant.ErrNotFound),
		errors.Is(err, participant.ErrCaseNotFound),
		errors.Is(err, timeline.ErrCaseNotFound),
		errors.Is(err, dealer.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, disputecase.ErrInvalidTransition),
		errors.Is(err, disputecase.ErrVersionConflict),
		errors.Is(err, mediation.ErrBadStatus),
		errors.Is(err, participant.ErrAlreadyInactive),
		errors.Is(err, auth.ErrDuplicateEmail):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, disputecase.ErrInvalidInput),
		errors.Is(err, evidence.ErrInvalidInput),
		errors.Is(err, mediation.ErrInvalidInput),
		errors.Is(err, participant.ErrInvalidInput),
		errors.Is(err, template.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("request failed", zap.Error(err))
		}
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
