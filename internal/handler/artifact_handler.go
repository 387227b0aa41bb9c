package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/internal/service"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/response"
)

// ValidateRequest carries the value to check.
type ValidateRequest struct {
	Value string `json:"value"`
}

// ArtifactHandler handles exports, the 3D viewer and input validation.
type ArtifactHandler struct {
	sessions  *SessionMiddleware
	exports   *service.ExportService
	structure *service.StructureService
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(sessions *SessionMiddleware, exports *service.ExportService, structure *service.StructureService) *ArtifactHandler {
	return &ArtifactHandler{
		sessions:  sessions,
		exports:   exports,
		structure: structure,
	}
}

// RegisterRoutes registers all routes.
func (h *ArtifactHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/validate/:kind", h.Validate)
		api.GET("/viewer/molecule", h.MoleculeViewer)

		session := api.Group("", h.sessions.RequireSession())
		session.GET("/viewer/protein", h.ProteinViewer)
		session.GET("/exports", h.ListExports)
		session.GET("/exports/:kind", h.Download)
		session.POST("/exports/:kind", h.Archive)
	}
}

// Validate runs one of the input validators.
func (h *ArtifactHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, ok := validate.ByKind(c.Param("kind"), req.Value)
	if !ok {
		response.NotFound(c, fmt.Sprintf("Unknown validator %q", c.Param("kind")))
		return
	}
	response.Success(c, result)
}

// MoleculeViewer returns the SDF payload for a SMILES.
func (h *ArtifactHandler) MoleculeViewer(c *gin.Context) {
	payload, err := h.structure.MoleculeViewer(c.Request.Context(), c.Query("smiles"))
	if err != nil {
		respondError(c, err, "failed to generate 3D structure")
		return
	}
	response.Success(c, payload)
}

// ProteinViewer returns the PDB payload of the session's protein.
func (h *ArtifactHandler) ProteinViewer(c *gin.Context) {
	payload, err := h.structure.ProteinViewer(GetSession(c))
	if err != nil {
		respondError(c, err, "failed to load protein structure")
		return
	}
	response.Success(c, payload)
}

// Download renders an export as a file attachment.
func (h *ArtifactHandler) Download(c *gin.Context) {
	doc, err := h.exports.Render(GetSession(c), c.Param("kind"), c.Query("format"))
	if err != nil {
		respondError(c, err, "export failed")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// Archive writes an export to artifact storage.
func (h *ArtifactHandler) Archive(c *gin.Context) {
	archived, err := h.exports.Archive(c.Request.Context(), GetSession(c), c.Param("kind"), c.Query("format"))
	if err != nil {
		respondError(c, err, "export archive failed")
		return
	}
	response.Created(c, archived)
}

// ListExports lists the session's archived exports.
func (h *ArtifactHandler) ListExports(c *gin.Context) {
	files, err := h.exports.List(c.Request.Context(), GetSession(c))
	if err != nil {
		respondError(c, err, "failed to list exports")
		return
	}
	response.Success(c, files)
}

// StaticFiles serves the front end from dir for every path outside /api.
// Unknown paths fall back to index.html.
func StaticFiles(dir string) gin.HandlerFunc {
	fs := gin.Dir(dir, false)
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") || c.Request.Method != http.MethodGet {
			response.NotFound(c, "Not found")
			return
		}

		if f, err := fs.Open(p); err == nil {
			stat, statErr := f.Stat()
			f.Close()
			if statErr == nil && !stat.IsDir() {
				c.FileFromFS(p, fs)
				return
			}
		}
		c.FileFromFS("/", fs)
	}
}
