package apihandlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/catalog"
	"vouchercat/internal/jobs"
	"vouchercat/internal/models"
	"vouchercat/internal/services"
	"vouchercat/pkg/categorizer"
)

// JobRunner is the part of *jobs.Runner the API drives.
type JobRunner interface {
	Submit(inputPath string) (string, <-chan jobs.Event, error)
	Get(id string) (jobs.Snapshot, bool)
	Cancel(id string) bool
}

// RunHistory is the read side of the run history store.
type RunHistory interface {
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)
	GetRunSummary(ctx context.Context) (*models.UsageSummary, error)
	Ping(ctx context.Context) error
}

type APIHandler struct {
	Catalogs    *catalog.Registry
	Categorizer categorizer.ProductCategorizer
	Jobs        JobRunner
	History     RunHistory // nil when history is disabled
}

func NewAPIHandler(catalogs *catalog.Registry, cat categorizer.ProductCategorizer, runner JobRunner, history RunHistory) *APIHandler {
	return &APIHandler{Catalogs: catalogs, Categorizer: cat, Jobs: runner, History: history}
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.History != nil {
		if err := h.History.Ping(c.Request.Context()); err != nil {
			Unavailable(c, "history database unreachable: "+err.Error())
			return
		}
		status["history"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

// CatalogSummary is one entry of the catalog listing.
type CatalogSummary struct {
	Language   string `json:"language"`
	Categories int    `json:"categories"`
}

func (h *APIHandler) ListCatalogsHandler(c *gin.Context) {
	langs := h.Catalogs.Languages()
	resp := make([]CatalogSummary, 0, len(langs))
	for _, lang := range langs {
		cat, err := h.Catalogs.Get(lang)
		if err != nil {
			continue
		}
		resp = append(resp, CatalogSummary{Language: lang, Categories: cat.Len()})
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *APIHandler) GetCatalogHandler(c *gin.Context) {
	lang := strings.ToLower(c.Param("lang"))
	cat, err := h.Catalogs.Get(lang)
	if err != nil {
		NotFound(c, fmt.Sprintf("no catalog for language %q", lang))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"language":   cat.Language,
		"categories": cat.Categories(c.Query("filter")),
	}})
}

// ClassifyRequest is the JSON body of POST /classify.
type ClassifyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Language    string `json:"language"`
}

// ClassifyResponse mirrors the four output columns of a categorized row.
type ClassifyResponse struct {
	CategoryID   string `json:"category_id"`
	CategoryURL  string `json:"category_url"`
	CategoryName string `json:"category_name"`
	Comment      string `json:"comment"`
}

func (h *APIHandler) ClassifyHandler(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = models.FallbackLanguage
	}
	cat, err := h.Catalogs.Get(lang)
	if err != nil {
		BadRequest(c, fmt.Sprintf("unsupported language %q", req.Language))
		return
	}

	product := models.ProductInput{Name: req.Name, Description: req.Description, Location: req.Location}
	out := h.Categorizer.Categorize(c.Request.Context(), product, lang, nil)

	resp := ClassifyResponse{CategoryID: out.Category, Comment: services.NormalizeComment(out.Comment, cat)}
	if entry, ok := cat.Lookup(out.Category); ok {
		resp.CategoryURL = entry.URL
		resp.CategoryName = entry.Name
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SubmitJobRequest is the JSON body of POST /jobs.
type SubmitJobRequest struct {
	InputPath string `json:"input_path" binding:"required"`
}

func (h *APIHandler) SubmitJobHandler(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if info, err := os.Stat(req.InputPath); err != nil || info.IsDir() {
		BadRequest(c, fmt.Sprintf("input file %q is not readable", req.InputPath))
		return
	}

	id, _, err := h.Jobs.Submit(req.InputPath)
	if err != nil {
		RespondError(c, "submit job", err)
		return
	}
	log.WithField("job_id", id).Infof("API submitted job for %s", req.InputPath)

	snap, _ := h.Jobs.Get(id)
	c.JSON(http.StatusAccepted, gin.H{"data": snap})
}

func (h *APIHandler) GetJobHandler(c *gin.Context) {
	snap, ok := h.Jobs.Get(c.Param("id"))
	if !ok {
		NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (h *APIHandler) CancelJobHandler(c *gin.Context) {
	if !h.Jobs.Cancel(c.Param("id")) {
		NotFound(c, "job not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) ListRunsHandler(c *gin.Context) {
	if h.History == nil {
		Unavailable(c, "run history is disabled")
		return
	}
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	runs, err := h.History.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		RespondError(c, "list runs", err)
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *APIHandler) GetRunHandler(c *gin.Context) {
	if h.History == nil {
		Unavailable(c, "run history is disabled")
		return
	}
	run, err := h.History.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, "get run", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

func (h *APIHandler) UsageHandler(c *gin.Context) {
	if h.History == nil {
		Unavailable(c, "run history is disabled")
		return
	}
	summary, err := h.History.GetRunSummary(c.Request.Context())
	if err != nil {
		RespondError(c, "summarize runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 500 {
		return 0, 0, fmt.Errorf("limit must be between 1 and 500")
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("offset must be a non-negative integer")
	}
	return limit, offset, nil
}
