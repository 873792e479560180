// internal/server/server.go
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"rpas-compliance/internal/activity"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/compliance"
	"rpas-compliance/internal/fha"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/search"
	"rpas-compliance/internal/sfoc"
	"rpas-compliance/internal/training"
)

const orgHeader = "X-Organization-Id"
const actorHeader = "X-Actor-Id"

// Server exposes the domain services over a small JSON API. Auth is handled
// upstream; the org and actor arrive as headers set by the gateway.
type Server struct {
	sfoc       *sfoc.Service
	compliance *compliance.Service
	fha        *fha.Service
	registry   *search.Registry
	training   *training.Service
	activity   *activity.Service
	logger     logger.Logger
}

func New(sfocSvc *sfoc.Service, complianceSvc *compliance.Service, fhaSvc *fha.Service, registry *search.Registry, trainingSvc *training.Service, activitySvc *activity.Service, log logger.Logger) *Server {
	return &Server{
		sfoc:       sfocSvc,
		compliance: complianceSvc,
		fha:        fhaSvc,
		registry:   registry,
		training:   trainingSvc,
		activity:   activitySvc,
		logger:     log,
	}
}

// Register mounts all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/sfoc/applications", s.handleSFOCApplications)
	mux.HandleFunc("/api/v1/sfoc/applications/", s.handleSFOCApplication)
	mux.HandleFunc("/api/v1/sfoc/stats", s.handleSFOCStats)
	mux.HandleFunc("/api/v1/hazards", s.handleHazards)
	mux.HandleFunc("/api/v1/master-hazards/", s.handleMasterHazard)
	mux.HandleFunc("/api/v1/registry/search", s.handleRegistrySearch)
	mux.HandleFunc("/api/v1/training/quizzes", s.handleQuizzes)
	mux.HandleFunc("/api/v1/compliance/templates", s.handleComplianceTemplates)
	mux.HandleFunc("/api/v1/compliance/applications", s.handleComplianceApplications)
	mux.HandleFunc("/api/v1/compliance/applications/", s.handleComplianceApplication)
	mux.HandleFunc("/api/v1/comments", s.handleComments)
	mux.HandleFunc("/api/v1/comments/", s.handleComment)
	mux.HandleFunc("/api/v1/activities", s.handleActivities)
}

func (s *Server) handleSFOCApplications(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	switch r.Method {
	case http.MethodGet:
		apps, err := s.sfoc.ListApplications(r.Context(), orgID)
		s.respond(w, apps, err)
	case http.MethodPost:
		var input sfoc.CreateInput
		if !s.decode(w, r, &input) {
			return
		}
		input.OrganizationID = orgID
		input.Actor = r.Header.Get(actorHeader)
		out, err := s.sfoc.CreateApplication(r.Context(), &input)
		s.respond(w, out, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSFOCApplication routes /applications/{id}, /{id}/status,
// /{id}/checklist, and /{id}/checklist/{itemId}.
func (s *Server) handleSFOCApplication(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	actor := r.Header.Get(actorHeader)
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sfoc/applications/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		app, err := s.sfoc.GetApplication(r.Context(), orgID, id)
		s.respond(w, app, err)

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		var body struct {
			Status string `json:"status"`
		}
		if !s.decode(w, r, &body) {
			return
		}
		app, err := s.sfoc.TransitionStatus(r.Context(), &sfoc.TransitionInput{
			OrganizationID: orgID,
			ApplicationID:  id,
			Status:         body.Status,
			Actor:          actor,
		})
		s.respond(w, app, err)

	case len(parts) == 2 && parts[1] == "checklist" && r.Method == http.MethodGet:
		items, err := s.sfoc.ListChecklist(r.Context(), orgID, id)
		s.respond(w, items, err)

	case len(parts) == 3 && parts[1] == "checklist" && r.Method == http.MethodPut:
		var body sfoc.ResponseInput
		if !s.decode(w, r, &body) {
			return
		}
		body.OrganizationID = orgID
		body.ApplicationID = id
		body.ItemID = parts[2]
		body.Actor = actor
		item, err := s.sfoc.UpdateRequirementResponse(r.Context(), &body)
		s.respond(w, item, err)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSFOCStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.sfoc.GetStats(r.Context(), r.Header.Get(orgHeader))
	s.respond(w, stats, err)
}

func (s *Server) handleHazards(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	switch r.Method {
	case http.MethodGet:
		hazards, err := s.fha.ListHazards(r.Context(), orgID)
		s.respond(w, hazards, err)
	case http.MethodPost:
		var hazard models.Hazard
		if !s.decode(w, r, &hazard) {
			return
		}
		hazard.OrganizationID = orgID
		created, err := s.fha.CreateHazard(r.Context(), &hazard, r.Header.Get(actorHeader))
		s.respond(w, created, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMasterHazard routes /master-hazards/{id} and /{id}/versions.
func (s *Server) handleMasterHazard(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/master-hazards/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		master, err := s.fha.GetMasterHazard(r.Context(), orgID, id)
		s.respond(w, master, err)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var master models.MasterHazard
		if !s.decode(w, r, &master) {
			return
		}
		master.ID = id
		master.OrganizationID = orgID
		updated, err := s.fha.UpdateMasterHazard(r.Context(), &master, r.Header.Get(actorHeader))
		s.respond(w, updated, err)

	case len(parts) == 2 && parts[1] == "versions" && r.Method == http.MethodGet:
		versions, err := s.fha.ListVersions(r.Context(), orgID, id)
		s.respond(w, versions, err)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRegistrySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	input := search.SearchInput{
		OrganizationID: r.Header.Get(orgHeader),
		Keywords:       q.Get("q"),
		Category:       q.Get("category"),
	}
	if tags := q.Get("tags"); tags != "" {
		input.Tags = strings.Split(tags, ",")
	}
	result, err := s.registry.Search(r.Context(), input)
	s.respond(w, result, err)
}

func (s *Server) handleQuizzes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Topic         string `json:"topic"`
		QuestionCount int    `json:"questionCount"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	attempt, err := s.training.StartQuiz(r.Context(), r.Header.Get(orgHeader), r.Header.Get(actorHeader), body.Topic, body.QuestionCount)
	s.respond(w, attempt, err)
}

func (s *Server) handleComplianceTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var tmpl models.ComplianceTemplate
	if !s.decode(w, r, &tmpl) {
		return
	}
	tmpl.OrganizationID = r.Header.Get(orgHeader)
	created, err := s.compliance.CreateTemplate(r.Context(), &tmpl, r.Header.Get(actorHeader))
	s.respond(w, created, err)
}

func (s *Server) handleComplianceApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		TemplateID string `json:"templateId"`
		Title      string `json:"title"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	app, items, err := s.compliance.CreateApplication(r.Context(), r.Header.Get(orgHeader), body.TemplateID, body.Title, r.Header.Get(actorHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, map[string]interface{}{"application": app, "items": items}, nil)
}

// handleComplianceApplication routes /applications/{id}, /{id}/status, and
// /{id}/items/{itemId}.
func (s *Server) handleComplianceApplication(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	actor := r.Header.Get(actorHeader)
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/compliance/applications/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		app, err := s.compliance.GetApplication(r.Context(), orgID, id)
		s.respond(w, app, err)

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		var body struct {
			Status string `json:"status"`
		}
		if !s.decode(w, r, &body) {
			return
		}
		app, err := s.compliance.TransitionStatus(r.Context(), orgID, id, body.Status, actor)
		s.respond(w, app, err)

	case len(parts) == 3 && parts[1] == "items" && r.Method == http.MethodPut:
		var body struct {
			Status string `json:"status"`
		}
		if !s.decode(w, r, &body) {
			return
		}
		item, err := s.compliance.UpdateItem(r.Context(), orgID, id, parts[2], body.Status, actor)
		s.respond(w, item, err)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get(orgHeader)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		comments, err := s.activity.ListComments(r.Context(), orgID, q.Get("entityType"), q.Get("entityId"))
		s.respond(w, comments, err)
	case http.MethodPost:
		var comment models.Comment
		if !s.decode(w, r, &comment) {
			return
		}
		comment.OrganizationID = orgID
		created, err := s.activity.AddComment(r.Context(), &comment, r.Header.Get(actorHeader))
		s.respond(w, created, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleComment routes /comments/{id}/flags. The body itself is immutable
// once posted; only the resolved and pinned flags can change.
func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/comments/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "flags" || r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Resolved bool `json:"resolved"`
		Pinned   bool `json:"pinned"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	comment, err := s.activity.SetCommentFlags(r.Context(), r.Header.Get(orgHeader), parts[0], body.Resolved, body.Pinned, r.Header.Get(actorHeader))
	s.respond(w, comment, err)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	activities, err := s.activity.ListActivities(r.Context(), r.Header.Get(orgHeader), q.Get("entityType"), q.Get("entityId"))
	s.respond(w, activities, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed JSON body"))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.Classify(err)
	status := httpStatus(appErr)
	if status >= 500 {
		s.logger.Error("request failed", map[string]interface{}{
			"code":  string(appErr.Code),
			"error": err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   appErr.Message,
		"code":    appErr.Code,
		"details": appErr.Details,
	})
}

func httpStatus(err *apperrors.AppError) int {
	switch err.Kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindAuth:
		return http.StatusUnauthorized
	case apperrors.KindPermission:
		return http.StatusForbidden
	case apperrors.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
