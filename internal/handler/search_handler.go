package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ultrathink/discovery-web/internal/service"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/response"
)

// SearchQuery is the query string of the search endpoints.
type SearchQuery struct {
	Query string `form:"q" binding:"required,max=500"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SimilarQuery is the query string of the similarity search. A zero
// threshold selects the configured default.
type SimilarQuery struct {
	SMILES    string `form:"smiles" binding:"required"`
	Threshold int    `form:"threshold" binding:"omitempty,min=40,max=100"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SearchHandler handles literature and compound searches.
type SearchHandler struct {
	search     *service.SearchService
	literature *service.LiteratureService
	compounds  *service.CompoundService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search *service.SearchService, literature *service.LiteratureService, compounds *service.CompoundService) *SearchHandler {
	return &SearchHandler{
		search:     search,
		literature: literature,
		compounds:  compounds,
	}
}

// RegisterRoutes registers all routes.
func (h *SearchHandler) RegisterRoutes(r *gin.Engine) {
	search := r.Group("/api/v1/search")
	{
		search.GET("", h.Search)
		search.GET("/pubmed", h.SearchPubMed)
		search.GET("/pubmed/:pmid/abstract", h.Abstract)
		search.GET("/chembl", h.SearchChEMBL)
		search.GET("/chembl/similar", h.SimilarCompounds)
	}
}

// bindQuery binds the query string into obj. Tag violations are reported
// against the offending field, anything else (a non-numeric limit) as a bad
// request.
func bindQuery(c *gin.Context, obj any) bool {
	err := c.ShouldBindQuery(obj)
	if err == nil {
		return true
	}

	l := log.Ctx(c.Request.Context())
	l.Debug().Err(err).Msg("invalid search request")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		response.ValidationFailed(c, strings.ToLower(fe.Field()), bindingMessage(fe))
		return false
	}
	response.BadRequest(c, "Invalid query parameters")
	return false
}

func bindingMessage(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Parameter %s is required", name)
	case "min":
		return fmt.Sprintf("Parameter %s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Parameter %s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("Parameter %s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("Parameter %s is invalid", name)
	}
}

func bindSearchQuery(c *gin.Context) (SearchQuery, bool) {
	var q SearchQuery
	ok := bindQuery(c, &q)
	return q, ok
}

// Search handles unified search across PubMed and ChEMBL.
func (h *SearchHandler) Search(c *gin.Context) {
	q, ok := bindSearchQuery(c)
	if !ok {
		return
	}

	result, err := h.search.All(c.Request.Context(), q.Query, q.Limit)
	if err != nil {
		respondError(c, err, "search failed")
		return
	}
	response.Success(c, result)
}

// SearchPubMed handles literature-only search.
func (h *SearchHandler) SearchPubMed(c *gin.Context) {
	q, ok := bindSearchQuery(c)
	if !ok {
		return
	}

	articles, err := h.literature.Search(c.Request.Context(), q.Query, q.Limit)
	if err != nil {
		respondError(c, err, "pubmed search failed")
		return
	}
	response.Success(c, articles)
}

// Abstract returns the abstract of one article.
func (h *SearchHandler) Abstract(c *gin.Context) {
	abs, err := h.literature.Abstract(c.Request.Context(), c.Param("pmid"))
	if err != nil {
		respondError(c, err, "failed to fetch abstract")
		return
	}
	response.Success(c, abs)
}

// SearchChEMBL handles compound-only search.
func (h *SearchHandler) SearchChEMBL(c *gin.Context) {
	q, ok := bindSearchQuery(c)
	if !ok {
		return
	}

	compounds, err := h.compounds.Search(c.Request.Context(), q.Query, q.Limit)
	if err != nil {
		respondError(c, err, "chembl search failed")
		return
	}
	response.Success(c, compounds)
}

// SimilarCompounds handles similarity search.
func (h *SearchHandler) SimilarCompounds(c *gin.Context) {
	var q SimilarQuery
	if !bindQuery(c, &q) {
		return
	}

	compounds, err := h.compounds.Similar(c.Request.Context(), q.SMILES, q.Threshold, q.Limit)
	if err != nil {
		respondError(c, err, "similarity search failed")
		return
	}
	response.Success(c, compounds)
}
