package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/aretw0/outline/internal/presentation/document"
	"github.com/aretw0/outline/internal/presentation/graph"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/exchange"
	"github.com/aretw0/outline/pkg/session"
	"github.com/go-chi/chi/v5"
)

// ProjectView is the body of GET /projects/{id}.
type ProjectView struct {
	Snapshot *domain.Snapshot `json:"snapshot"`
	Status   session.Status   `json:"status"`
	Dirty    bool             `json:"dirty"`
}

// AddNodeRequest is the body of POST /projects/{id}/nodes.
type AddNodeRequest struct {
	ParentID string `json:"parent_id" validate:"required"`
	// Node may omit its id; one is generated.
	Node domain.Node `json:"node" validate:"-"`
}

// RenameRequest is the body of PUT /projects/{id}/name.
type RenameRequest struct {
	Name string `json:"name" validate:"required"`
}

// CheckpointRequest is the body of POST /projects/{id}/checkpoints.
type CheckpointRequest struct {
	Kind   string `json:"kind" validate:"required"`
	Remark string `json:"remark"`
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Projects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetProject handles GET /projects/{id}. Unknown projects open as new drafts.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, ProjectView{
		Snapshot: sess.Snapshot(),
		Status:   sess.Status(),
		Dirty:    sess.Dirty(),
	})
}

// DeleteProject handles DELETE /projects/{id}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOutline handles GET /projects/{id}/outline?collapsed=a,b.
func (s *Server) GetOutline(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Outline(collapsed(r)))
}

// GetTree handles GET /projects/{id}/tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Tree())
}

// GetDocument handles GET /projects/{id}/document?format=markdown.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	format, err := document.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "format", Reason: err.Error()})
		return
	}
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == document.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	io.WriteString(w, document.Render(sess.Snapshot(), collapsed(r), format))
}

// GetGraph handles GET /projects/{id}/graph, returning a Mermaid flowchart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	var overlay *graph.Overlay
	if sel := r.URL.Query().Get("selected"); sel != "" {
		overlay = &graph.Overlay{Selected: sel}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(sess.Snapshot(), collapsed(r), overlay))
}

// AddNode handles POST /projects/{id}/nodes.
func (s *Server) AddNode(w http.ResponseWriter, r *http.Request) {
	var body AddNodeRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := exchange.ValidateStruct(&body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	node, err := exchange.SanitizeNode(body.Node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	node, err = sess.AddChild(body.ParentID, node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

// UpdateNode handles PATCH /projects/{id}/nodes/{nodeID}.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var patch domain.NodePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	patch, err := exchange.SanitizePatch(patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.UpdateNode(chi.URLParam(r, "nodeID"), patch); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNode handles DELETE /projects/{id}/nodes/{nodeID}?subtree=true.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	subtree := false
	if raw := r.URL.Query().Get("subtree"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: "subtree", Reason: err.Error()})
			return
		}
		subtree = v
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteNode(chi.URLParam(r, "nodeID"), subtree); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles POST /projects/{id}/reorder and returns the new visible outline.
func (s *Server) Reorder(w http.ResponseWriter, r *http.Request) {
	var intent domain.DragIntent
	if err := decodeJSON(r, &intent); err != nil {
		s.writeError(w, err)
		return
	}
	if err := exchange.ValidateStruct(&intent); err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Reorder(intent); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Outline(collapsed(r)))
}

// Rename handles PUT /projects/{id}/name.
func (s *Server) Rename(w http.ResponseWriter, r *http.Request) {
	var body RenameRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := exchange.ValidateStruct(&body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	name, err := exchange.SanitizeText(body.Name)
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "name", Reason: err.Error()})
		return
	}
	if err := sess.Rename(name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetChanges handles GET /projects/{id}/changes.
func (s *Server) GetChanges(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"changes": sess.Changes(),
		"dirty":   sess.Dirty(),
	})
}

// Checkpoint handles POST /projects/{id}/checkpoints.
func (s *Server) Checkpoint(w http.ResponseWriter, r *http.Request) {
	var body CheckpointRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := exchange.ValidateStruct(&body); err != nil {
		s.writeError(w, err)
		return
	}
	kind, err := domain.ParseCheckpointKind(body.Kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	rec, err := sess.Checkpoint(r.Context(), kind, body.Remark)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

// GetHistory handles GET /projects/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Engine.History(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

// Import handles POST /projects/{id}/import. The body is JSON unless the
// format query parameter or Content-Type says YAML.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	format := exchange.FormatJSON
	if f, err := exchange.ParseFormat(r.URL.Query().Get("format")); err == nil {
		format = f
	} else if ct := r.Header.Get("Content-Type"); ct == "application/yaml" || ct == "text/yaml" {
		format = exchange.FormatYAML
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	doc, err := exchange.Decode(data, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Import(doc.Nodes, doc.Edges, doc.Name()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"changes": sess.Changes()})
}

// Export handles GET /projects/{id}/export?format=yaml.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	format := exchange.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := exchange.ParseFormat(raw)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: "format", Reason: err.Error()})
			return
		}
		format = f
	}
	sess, ok := s.view(w, r)
	if !ok {
		return
	}
	data, err := exchange.Encode(sess.Snapshot(), format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if format == exchange.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ID()+"."+string(format)))
	w.Write(data)
}
