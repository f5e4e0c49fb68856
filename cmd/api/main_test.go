package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"disputeflow/auth"
	"disputeflow/dealer"
	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/participant"
	"disputeflow/template"
	"disputeflow/timeline"
)

var adminIdentity = auth.Identity{UserID: "u-admin", Name: "Ana Admin", Role: auth.RoleAdmin}

func testServer(cases caseService) *Server {
	return &Server{
		auth:  &stubAuth{ident: adminIdentity},
		cases: cases,
	}
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer token")
	return req
}

func TestFileDispute_Success(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	cases := &stubCases{
		fileResult: disputecase.Case{
			ID:              "d1",
			CaseNumber:      "DSP-000001",
			Status:          disputecase.StatusFiled,
			Title:           "Refund not issued",
			ResponseDueAt:   now.Add(48 * time.Hour),
			ResolutionDueAt: now.Add(720 * time.Hour),
			CreatedAt:       now,
		},
	}
	server := testServer(cases)

	body := `{"type":"billing","title":"Refund not issued","respondent_id":"dealer-9","respondent_name":"AutoMax"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp caseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CaseNumber != "DSP-000001" || resp.Status != "filed" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	// the complainant is the authenticated caller, never the request body
	if cases.fileParams.Complainant.ID != adminIdentity.UserID {
		t.Fatalf("expected complainant from token, got %+v", cases.fileParams.Complainant)
	}
}

func TestFileDispute_Unauthorized(t *testing.T) {
	server := testServer(&stubCases{})

	req := httptest.NewRequest(http.MethodPost, "/api/disputes", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetDispute_NotFound(t *testing.T) {
	server := testServer(&stubCases{err: disputecase.ErrNotFound})

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/disputes/missing", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAcknowledge_InvalidTransition(t *testing.T) {
	server := testServer(&stubCases{err: disputecase.ErrInvalidTransition})

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes/d1/acknowledge", ""))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestFileDispute_ValidationMapsToBadRequest(t *testing.T) {
	server := testServer(&stubCases{
		err: fmt.Errorf("disputecase: title required: %w", disputecase.ErrInvalidInput),
	})

	body := `{"type":"billing","respondent_id":"dealer-9","respondent_name":"AutoMax"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOverrideStatus_RequiresAdmin(t *testing.T) {
	server := &Server{
		auth:  &stubAuth{ident: auth.Identity{UserID: "u-1", Name: "Pedro", Role: auth.RoleMediator}},
		cases: &stubCases{},
	}

	body := `{"status":"closed","reason":"cleanup"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes/d1/status-override", body))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestReviewEvidence_MapsConflict(t *testing.T) {
	server := &Server{
		auth:     &stubAuth{ident: adminIdentity},
		evidence: &stubEvidence{err: evidence.ErrNotFound},
	}

	body := `{"status":"accepted"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/evidence/e1/review", body))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelSession_BadStatus(t *testing.T) {
	server := &Server{
		auth:      &stubAuth{ident: adminIdentity},
		mediation: &stubMediation{err: mediation.ErrBadStatus},
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/sessions/s1/cancel", `{"reason":"late"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRemoveParticipant_AlreadyInactive(t *testing.T) {
	server := &Server{
		auth:         &stubAuth{ident: adminIdentity},
		participants: &stubParticipants{err: participant.ErrAlreadyInactive},
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/participants/p1", ""))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestTimeline_List(t *testing.T) {
	server := &Server{
		auth: &stubAuth{ident: adminIdentity},
		timeline: &stubTimeline{events: []timeline.Event{
			{Seq: 1, Type: timeline.EventDisputeFiled, Description: "Dispute filed", ActorName: "Maria", ActorRole: "complainant"},
			{Seq: 2, Type: timeline.EventStatusChanged, Description: "Dispute acknowledged", ActorName: "Ana", ActorRole: "admin"},
		}},
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/disputes/d1/timeline", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Items []eventResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 || payload.Items[0].Seq != 1 || payload.Items[1].Type != "STATUS_CHANGED" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	server := &Server{
		auth: &stubAuth{loginErr: auth.ErrInvalidCredentials},
	}

	body := strings.NewReader(`{"email":"x@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUnexpectedError_Is500(t *testing.T) {
	server := testServer(&stubCases{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/disputes/d1", ""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestResolve_SummaryDefaultsFromTemplate(t *testing.T) {
	cases := &stubCases{
		result: disputecase.Case{
			ID:          "d1",
			CaseNumber:  "DSP-000042",
			Type:        disputecase.TypeBilling,
			Status:      disputecase.StatusInMediation,
			Complainant: disputecase.Party{ID: "u-9", Name: "Maria"},
			Respondent:  disputecase.Party{ID: "dl-1", Name: "AutoMax"},
		},
	}
	server := &Server{
		auth:  &stubAuth{ident: adminIdentity},
		cases: cases,
		templates: &stubTemplates{tpl: template.Template{
			DisputeType:    "billing",
			ResolutionType: "refund",
			Body:           "Case {case_number}: {respondent} refunds {complainant}.",
			IsActive:       true,
		}},
	}

	body := `{"resolution_type":"refund"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes/d1/resolve", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "Case DSP-000042: AutoMax refunds Maria."
	if cases.resolveSummary != want {
		t.Fatalf("expected rendered summary %q, got %q", want, cases.resolveSummary)
	}
}

func TestResolve_ExplicitSummaryWins(t *testing.T) {
	cases := &stubCases{result: disputecase.Case{ID: "d1"}}
	server := &Server{
		auth:      &stubAuth{ident: adminIdentity},
		cases:     cases,
		templates: &stubTemplates{tpl: template.Template{Body: "template text"}},
	}

	body := `{"resolution_type":"refund","summary":"negotiated directly"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/disputes/d1/resolve", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cases.resolveSummary != "negotiated directly" {
		t.Fatalf("expected caller summary kept, got %q", cases.resolveSummary)
	}
}

func TestUpsertTemplate_RequiresAdmin(t *testing.T) {
	server := &Server{
		auth:      &stubAuth{ident: auth.Identity{UserID: "u-1", Name: "Pedro", Role: auth.RoleMediator}},
		templates: &stubTemplates{},
	}

	body := `{"dispute_type":"billing","resolution_type":"refund","body":"x"}`
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodPut, "/api/resolution-templates", body))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDealer_Success(t *testing.T) {
	now := time.Date(2025, 6, 30, 15, 4, 5, 0, time.UTC)
	server := &Server{
		auth: &stubAuth{ident: adminIdentity},
		dealers: dealer.NewService(&stubDealerRepo{
			profile: dealer.Profile{
				ID:        "dl1",
				Name:      "AutoMax Santo Domingo",
				RNC:       "1-30-12345-6",
				Verified:  true,
				CreatedAt: now,
			},
		}),
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/dealers/dl1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dealerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "dl1" || resp.Name != "AutoMax Santo Domingo" || !resp.Verified {
		t.Fatalf("unexpected response payload: %+v", resp)
	}
	if resp.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.CreatedAt)
	}
}

func TestDealers_ListLimit(t *testing.T) {
	now := time.Now().UTC()
	server := &Server{
		auth: &stubAuth{ident: adminIdentity},
		dealers: dealer.NewService(&stubDealerRepo{
			profiles: []dealer.Profile{
				{ID: "dl1", Name: "Alpha Motors", Verified: true, CreatedAt: now},
				{ID: "dl2", Name: "Beta Motors", Verified: false, CreatedAt: now},
			},
		}),
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/dealers?limit=1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Items []dealerResponse `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Total != 1 || payload.Items[0].ID != "dl1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDealer_NotFound(t *testing.T) {
	server := &Server{
		auth:    &stubAuth{ident: adminIdentity},
		dealers: dealer.NewService(&stubDealerRepo{err: dealer.ErrNotFound}),
	}

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/dealers/missing", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// ---- stubs ----

type stubDealerRepo struct {
	profile  dealer.Profile
	profiles []dealer.Profile
	err      error
}

func (s *stubDealerRepo) GetByID(_ context.Context, _ string) (dealer.Profile, error) {
	return s.profile, s.err
}

func (s *stubDealerRepo) List(_ context.Context, limit int) ([]dealer.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit <= 0 || limit > len(s.profiles) {
		limit = len(s.profiles)
	}
	out := make([]dealer.Profile, limit)
	copy(out, s.profiles[:limit])
	return out, nil
}

type stubAuth struct {
	ident    auth.Identity
	loginErr error
}

func (s *stubAuth) Register(_ context.Context, req auth.RegisterRequest) (*auth.User, error) {
	return &auth.User{ID: "u-1", Email: req.Email, FullName: req.FullName, Role: auth.RoleUser}, nil
}

func (s *stubAuth) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	if s.loginErr != nil {
		return auth.LoginResult{}, s.loginErr
	}
	return auth.LoginResult{Token: "token"}, nil
}

func (s *stubAuth) VerifyToken(_ string) (auth.Identity, error) {
	if s.ident.UserID == "" {
		return auth.Identity{}, errors.New("no identity")
	}
	return s.ident, nil
}

type stubCases struct {
	fileResult     disputecase.Case
	fileParams     disputecase.FileParams
	result         disputecase.Case
	resolveSummary string
	err            error
}

func (s *stubCases) File(_ context.Context, params disputecase.FileParams) (disputecase.Case, error) {
	s.fileParams = params
	return s.fileResult, s.err
}

func (s *stubCases) Acknowledge(_ context.Context, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) AssignMediator(_ context.Context, _, _, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) Escalate(_ context.Context, _, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) Resolve(_ context.Context, _, _, summary string, _ disputecase.Actor) (disputecase.Case, error) {
	s.resolveSummary = summary
	return s.result, s.err
}

func (s *stubCases) Close(_ context.Context, _, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) ReferToProConsumidor(_ context.Context, _, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) OverrideStatus(_ context.Context, _ string, _ disputecase.Status, _ string, _ disputecase.Actor) (disputecase.Case, error) {
	return s.result, s.err
}

func (s *stubCases) Get(_ context.Context, _ string) (disputecase.Case, error) {
	return s.result, s.err
}

type stubEvidence struct {
	record evidence.Record
	err    error
}

func (s *stubEvidence) Submit(_ context.Context, _ evidence.SubmitParams) (evidence.Record, error) {
	return s.record, s.err
}

func (s *stubEvidence) Review(_ context.Context, _ evidence.ReviewParams) (evidence.Record, error) {
	return s.record, s.err
}

func (s *stubEvidence) ListByDispute(_ context.Context, _ string) ([]evidence.Record, error) {
	return nil, s.err
}

type stubMediation struct {
	session mediation.Session
	err     error
}

func (s *stubMediation) Schedule(_ context.Context, _ mediation.ScheduleParams) (mediation.Session, error) {
	return s.session, s.err
}

func (s *stubMediation) Start(_ context.Context, _, _, _ string) (mediation.Session, error) {
	return s.session, s.err
}

func (s *stubMediation) Complete(_ context.Context, _ mediation.CompleteParams) (mediation.Session, error) {
	return s.session, s.err
}

func (s *stubMediation) Cancel(_ context.Context, _, _, _, _ string) (mediation.Session, error) {
	return s.session, s.err
}

func (s *stubMediation) ListByDispute(_ context.Context, _ string) ([]mediation.Session, error) {
	return nil, s.err
}

type stubParticipants struct {
	p   participant.Participant
	err error
}

func (s *stubParticipants) Add(_ context.Context, _ participant.AddParams) (participant.Participant, error) {
	return s.p, s.err
}

func (s *stubParticipants) Remove(_ context.Context, _, _, _, _ string) (participant.Participant, error) {
	return s.p, s.err
}

func (s *stubParticipants) ListByDispute(_ context.Context, _ string) ([]participant.Participant, error) {
	return nil, s.err
}

type stubTemplates struct {
	tpl template.Template
	err error
}

func (s *stubTemplates) Lookup(_ context.Context, _, _ string) (template.Template, error) {
	if s.err != nil {
		return template.Template{}, s.err
	}
	return s.tpl, nil
}

func (s *stubTemplates) ListByDisputeType(_ context.Context, _ string) ([]template.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []template.Template{s.tpl}, nil
}

func (s *stubTemplates) Upsert(_ context.Context, t template.Template) (template.Template, error) {
	if s.err != nil {
		return template.Template{}, s.err
	}
	return t, nil
}

type stubTimeline struct {
	events []timeline.Event
	err    error
}

func (s *stubTimeline) ListByDispute(_ context.Context, _ string) ([]timeline.Event, error) {
	return s.events, s.err
}
