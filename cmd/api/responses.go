package main

import (
	"time"

	"disputeflow/dealer"
	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/participant"
	"disputeflow/template"
	"disputeflow/timeline"
)

type caseResponse struct {
	ID              string  `json:"id"`
	CaseNumber      string  `json:"case_number"`
	Type            string  `json:"type"`
	Priority        string  `json:"priority"`
	Status          string  `json:"status"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ComplainantID   string  `json:"complainant_id"`
	ComplainantName string  `json:"complainant_name"`
	RespondentID    string  `json:"respondent_id"`
	RespondentName  string  `json:"respondent_name"`
	AmountCents     *int64  `json:"amount_cents,omitempty"`
	Currency        *string `json:"currency,omitempty"`
	ResponseDueAt   string  `json:"response_due_at"`
	ResolutionDueAt string  `json:"resolution_due_at"`
	MediatorID      *string `json:"mediator_id,omitempty"`
	MediatorName    *string `json:"mediator_name,omitempty"`
	IsEscalated     bool    `json:"is_escalated"`
	Referred        bool    `json:"referred_to_pro_consumidor"`
	ResolutionType  *string `json:"resolution_type,omitempty"`
	ResolvedAt      *string `json:"resolved_at,omitempty"`
	Version         int     `json:"version"`
	CreatedAt       string  `json:"created_at"`
}

func caseResponseFrom(c disputecase.Case) caseResponse {
	return caseResponse{
		ID:              c.ID,
		CaseNumber:      c.CaseNumber,
		Type:            string(c.Type),
		Priority:        string(c.Priority),
		Status:          string(c.Status),
		Title:           c.Title,
		Description:     c.Description,
		ComplainantID:   c.Complainant.ID,
		ComplainantName: c.Complainant.Name,
		RespondentID:    c.Respondent.ID,
		RespondentName:  c.Respondent.Name,
		AmountCents:     c.AmountCents,
		Currency:        c.Currency,
		ResponseDueAt:   c.ResponseDueAt.Format(time.RFC3339),
		ResolutionDueAt: c.ResolutionDueAt.Format(time.RFC3339),
		MediatorID:      c.MediatorID,
		MediatorName:    c.MediatorName,
		IsEscalated:     c.IsEscalated,
		Referred:        c.ReferredToProConsumidor,
		ResolutionType:  c.ResolutionType,
		ResolvedAt:      formatTimePtr(c.ResolvedAt),
		Version:         c.Version,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
}

type evidenceResponse struct {
	ID           string  `json:"id"`
	DisputeID    string  `json:"dispute_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Kind         string  `json:"kind"`
	FileName     string  `json:"file_name"`
	ContentType  string  `json:"content_type"`
	SizeBytes    int64   `json:"size_bytes"`
	StorageKey   string  `json:"storage_key"`
	ReviewStatus string  `json:"review_status"`
	ReviewerName *string `json:"reviewer_name,omitempty"`
	ReviewNotes  *string `json:"review_notes,omitempty"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func evidenceResponseFrom(rec evidence.Record) evidenceResponse {
	return evidenceResponse{
		ID:           rec.ID,
		DisputeID:    rec.DisputeID,
		Name:         rec.Name,
		Description:  rec.Description,
		Kind:         string(rec.Kind),
		FileName:     rec.File.Name,
		ContentType:  rec.File.ContentType,
		SizeBytes:    rec.File.SizeBytes,
		StorageKey:   rec.File.StorageKey,
		ReviewStatus: string(rec.ReviewStatus),
		ReviewerName: rec.ReviewerName,
		ReviewNotes:  rec.ReviewNotes,
		ReviewedAt:   formatTimePtr(rec.ReviewedAt),
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

type sessionResponse struct {
	ID              string  `json:"id"`
	DisputeID       string  `json:"dispute_id"`
	SessionNumber   int     `json:"session_number"`
	Status          string  `json:"status"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Channel         string  `json:"channel"`
	Location        string  `json:"location"`
	MediatorID      string  `json:"mediator_id"`
	MediatorName    string  `json:"mediator_name"`
	StartedAt       *string `json:"started_at,omitempty"`
	EndedAt         *string `json:"ended_at,omitempty"`
	OutcomeSummary  *string `json:"outcome_summary,omitempty"`
	PartiesAgreed   bool    `json:"parties_agreed"`
}

func sessionResponseFrom(sess mediation.Session) sessionResponse {
	return sessionResponse{
		ID:              sess.ID,
		DisputeID:       sess.DisputeID,
		SessionNumber:   sess.SessionNumber,
		Status:          string(sess.Status),
		ScheduledAt:     sess.ScheduledAt.Format(time.RFC3339),
		DurationMinutes: sess.DurationMinutes,
		Channel:         string(sess.Channel),
		Location:        sess.Location,
		MediatorID:      sess.MediatorID,
		MediatorName:    sess.MediatorName,
		StartedAt:       formatTimePtr(sess.StartedAt),
		EndedAt:         formatTimePtr(sess.EndedAt),
		OutcomeSummary:  sess.OutcomeSummary,
		PartiesAgreed:   sess.PartiesAgreed,
	}
}

type participantResponse struct {
	ID        string  `json:"id"`
	DisputeID string  `json:"dispute_id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	IsActive  bool    `json:"is_active"`
	JoinedAt  string  `json:"joined_at"`
	LeftAt    *string `json:"left_at,omitempty"`
}

func participantResponseFrom(p participant.Participant) participantResponse {
	return participantResponse{
		ID:        p.ID,
		DisputeID: p.DisputeID,
		UserID:    p.UserID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      string(p.Role),
		IsActive:  p.IsActive,
		JoinedAt:  p.JoinedAt.Format(time.RFC3339),
		LeftAt:    formatTimePtr(p.LeftAt),
	}
}

type eventResponse struct {
	Seq         int     `json:"seq"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	OldValue    *string `json:"old_value,omitempty"`
	NewValue    *string `json:"new_value,omitempty"`
	ActorID     *string `json:"actor_id,omitempty"`
	ActorName   string  `json:"actor_name"`
	ActorRole   string  `json:"actor_role"`
	CreatedAt   string  `json:"created_at"`
}

func eventResponseFrom(e timeline.Event) eventResponse {
	return eventResponse{
		Seq:         e.Seq,
		Type:        string(e.Type),
		Description: e.Description,
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		ActorID:     e.ActorID,
		ActorName:   e.ActorName,
		ActorRole:   e.ActorRole,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

type dealerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RNC       string `json:"rnc"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at"`
}

func dealerResponseFrom(p dealer.Profile) dealerResponse {
	return dealerResponse{
		ID:        p.ID,
		Name:      p.Name,
		RNC:       p.RNC,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type templateResponse struct {
	ID             string `json:"id"`
	DisputeType    string `json:"dispute_type"`
	ResolutionType string `json:"resolution_type"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	IsActive       bool   `json:"is_active"`
}

func templateResponseFrom(t template.Template) templateResponse {
	return templateResponse{
		ID:             t.ID,
		DisputeType:    t.DisputeType,
		ResolutionType: t.ResolutionType,
		Title:          t.Title,
		Body:           t.Body,
		IsActive:       t.IsActive,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
