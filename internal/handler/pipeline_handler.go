package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/service"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/response"
)

// ContinueRequest selects the variant the next generation is bred from.
type ContinueRequest struct {
	SelectedSMILES string `json:"selected_smiles"`
	NumVariants    int    `json:"num_variants"`
}

// DockingRequest asks for a simulated docking run. An empty target uses
// the session's last discovery target.
type DockingRequest struct {
	SMILES string `json:"smiles"`
	Target string `json:"target"`
}

// PipelineHandler handles the discovery, protein, evolution and status
// panels.
type PipelineHandler struct {
	sessions  *SessionMiddleware
	discovery *service.DiscoveryService
	protein   *service.ProteinService
	evolution *service.EvolutionService
	docking   *service.DockingService
	status    *service.StatusService
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(
	sessions *SessionMiddleware,
	discovery *service.DiscoveryService,
	protein *service.ProteinService,
	evolution *service.EvolutionService,
	docking *service.DockingService,
	status *service.StatusService,
) *PipelineHandler {
	return &PipelineHandler{
		sessions:  sessions,
		discovery: discovery,
		protein:   protein,
		evolution: evolution,
		docking:   docking,
		status:    status,
	}
}

// RegisterRoutes registers all routes.
func (h *PipelineHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.sessions.RequireSession())
	{
		api.GET("/state", h.State)
		api.GET("/targets", h.Targets)

		api.POST("/discovery", h.RunDiscovery)
		api.GET("/discovery", h.Discovery)
		api.DELETE("/discovery", h.ClearDiscovery)
		api.DELETE("/discovery/error", h.DismissDiscovery)

		api.POST("/protein", h.PredictProtein)
		api.GET("/protein", h.Protein)
		api.DELETE("/protein/error", h.DismissProtein)

		api.POST("/evolution", h.Evolve)
		api.POST("/evolution/continue", h.ContinueEvolution)
		api.GET("/evolution", h.Evolution)
		api.DELETE("/evolution/error", h.DismissEvolution)

		api.GET("/status", h.Status)
		api.POST("/status", h.CheckStatus)

		api.POST("/docking", h.Dock)
	}
}

// bindOptionalJSON binds the body into req. An empty body keeps req as is.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("invalid request body")
		response.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// State returns every store snapshot of the session.
func (h *PipelineHandler) State(c *gin.Context) {
	response.Success(c, GetSession(c).State())
}

// Targets lists the orchestrator's targets.
func (h *PipelineHandler) Targets(c *gin.Context) {
	targets, err := h.discovery.Targets(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list targets")
		return
	}
	response.Success(c, targets)
}

// RunDiscovery runs the discovery pipeline.
func (h *PipelineHandler) RunDiscovery(c *gin.Context) {
	var req domain.DiscoveryRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.discovery.Run(c.Request.Context(), GetSession(c), req)
	if err != nil {
		respondError(c, err, "discovery failed")
		return
	}
	response.Success(c, res)
}

// Discovery returns the discovery store snapshot.
func (h *PipelineHandler) Discovery(c *gin.Context) {
	response.Success(c, GetSession(c).Discovery.Snapshot())
}

// ClearDiscovery forgets the discovery results.
func (h *PipelineHandler) ClearDiscovery(c *gin.Context) {
	sess := GetSession(c)
	if err := h.discovery.Clear(c.Request.Context(), sess); err != nil {
		respondError(c, err, "failed to clear discovery results")
		return
	}
	response.Success(c, sess.Discovery.Snapshot())
}

// DismissDiscovery clears the discovery error banner.
func (h *PipelineHandler) DismissDiscovery(c *gin.Context) {
	s := GetSession(c).Discovery
	s.Dismiss()
	response.Success(c, s.Snapshot())
}

// PredictProtein predicts a protein structure.
func (h *PipelineHandler) PredictProtein(c *gin.Context) {
	var req domain.ProteinRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.protein.Predict(c.Request.Context(), GetSession(c), req)
	if err != nil {
		respondError(c, err, "structure prediction failed")
		return
	}
	response.Success(c, res)
}

// Protein returns the protein store snapshot.
func (h *PipelineHandler) Protein(c *gin.Context) {
	response.Success(c, GetSession(c).Protein.Snapshot())
}

// DismissProtein clears the protein error banner.
func (h *PipelineHandler) DismissProtein(c *gin.Context) {
	s := GetSession(c).Protein
	s.Dismiss()
	response.Success(c, s.Snapshot())
}

// Evolve starts a new lineage.
func (h *PipelineHandler) Evolve(c *gin.Context) {
	var req domain.EvolutionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.evolution.Evolve(c.Request.Context(), GetSession(c), req)
	if err != nil {
		respondError(c, err, "evolution failed")
		return
	}
	response.Success(c, res)
}

// ContinueEvolution breeds the next generation.
func (h *PipelineHandler) ContinueEvolution(c *gin.Context) {
	var req ContinueRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.evolution.Continue(c.Request.Context(), GetSession(c), req.SelectedSMILES, req.NumVariants)
	if err != nil {
		if errors.Is(err, session.ErrNoData) {
			response.Conflict(c, "Run an evolution before continuing to the next generation")
			return
		}
		respondError(c, err, "evolution failed")
		return
	}
	response.Success(c, res)
}

// Evolution returns the evolution store snapshot.
func (h *PipelineHandler) Evolution(c *gin.Context) {
	response.Success(c, GetSession(c).Evolution.Snapshot())
}

// DismissEvolution clears the evolution error banner.
func (h *PipelineHandler) DismissEvolution(c *gin.Context) {
	s := GetSession(c).Evolution
	s.Dismiss()
	response.Success(c, s.Snapshot())
}

// Status returns the last connection check.
func (h *PipelineHandler) Status(c *gin.Context) {
	response.Success(c, GetSession(c).Connection.Snapshot())
}

// CheckStatus polls every backend service again.
func (h *PipelineHandler) CheckStatus(c *gin.Context) {
	response.Success(c, h.status.Check(c.Request.Context(), GetSession(c)))
}

// Dock runs a simulated docking.
func (h *PipelineHandler) Dock(c *gin.Context) {
	var req DockingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Target == "" {
		req.Target = GetSession(c).LastTarget()
	}
	if req.Target == "" {
		req.Target = domain.DefaultTargetName
	}

	res, err := h.docking.Simulate(c.Request.Context(), req.SMILES, req.Target)
	if err != nil {
		respondError(c, err, "docking failed")
		return
	}
	response.Success(c, res)
}
