package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sgaravatti/cantieri-docs/constants"
	"github.com/sgaravatti/cantieri-docs/internal/common"
	"github.com/sgaravatti/cantieri-docs/internal/config"
	"github.com/sgaravatti/cantieri-docs/internal/pipeline"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
)

type API struct {
	cfg  *config.Config
	deps Deps
}

func NewAPI(cfg *config.Config, deps Deps) *API {
	return &API{cfg: cfg, deps: deps}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.GET("/sites", api.handleListSites)
		apiGroup.POST("/sites", api.handleCreateSite)
		apiGroup.GET("/sites/:id", api.handleGetSite)
		apiGroup.PUT("/sites/:id", api.handleUpdateSite)
		apiGroup.DELETE("/sites/:id", api.handleDeleteSite)

		apiGroup.GET("/sites/:id/workers", api.handleListWorkers)
		apiGroup.POST("/sites/:id/workers", api.handleCreateWorker)
		apiGroup.PUT("/workers/:id", api.handleUpdateWorker)
		apiGroup.DELETE("/workers/:id", api.handleDeleteWorker)

		apiGroup.GET("/sites/:id/documents", api.handleListDocuments)
		apiGroup.POST("/sites/:id/documents", api.handleUploadDocument)
		apiGroup.GET("/sites/:id/documents/expiring", api.handleListExpiring)
		apiGroup.GET("/sites/:id/export", api.handleExportRegister)
		apiGroup.POST("/sites/:id/report", api.handleGenerateReport)

		apiGroup.GET("/documents/:id", api.handleGetDocument)
		apiGroup.POST("/documents/:id/review", api.handleReviewDocument)
		apiGroup.DELETE("/documents/:id", api.handleDeleteDocument)
	}

	r.GET("/files/:name", api.handleServeUpload)
	r.GET("/exports/:name", api.handleServeExport)
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func respondRepoError(c *gin.Context, err error) {
	if errors.Is(err, common.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "not found")
		return
	}
	respondMessage(c, http.StatusInternalServerError, err.Error())
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) handleHealth(c *gin.Context) {
	if err := repository.HealthCheck(c.Request.Context(), a.deps.DB, 3*time.Second); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- sites ---

type sitePayload struct {
	Name      string `json:"name" binding:"required"`
	Address   string `json:"address"`
	Client    string `json:"client"`
	StartDate string `json:"start_date"`
	Notes     string `json:"notes"`
}

func (p sitePayload) toRequest() (repository.CreateSiteRequest, error) {
	req := repository.CreateSiteRequest{
		Name:    strings.TrimSpace(p.Name),
		Address: strings.TrimSpace(p.Address),
		Client:  strings.TrimSpace(p.Client),
		Notes:   p.Notes,
	}
	if p.StartDate != "" {
		t, err := time.Parse("2006-01-02", p.StartDate)
		if err != nil {
			return req, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		req.StartDate = &t
	}
	return req, nil
}

func (a *API) handleListSites(c *gin.Context) {
	sites, err := a.deps.Sites.List(c.Request.Context())
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

func (a *API) handleCreateSite(c *gin.Context) {
	var payload sitePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	site, err := a.deps.Sites.Create(c.Request.Context(), req)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (a *API) handleGetSite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	site, err := a.deps.Sites.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (a *API) handleUpdateSite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var payload sitePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	site, err := a.deps.Sites.Update(c.Request.Context(), id, req)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (a *API) handleDeleteSite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := a.deps.Sites.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- workers ---

type workerPayload struct {
	FullName string `json:"full_name" binding:"required"`
	TaxCode  string `json:"tax_code"`
	Role     string `json:"role"`
}

func (a *API) handleListWorkers(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	workers, err := a.deps.Workers.ListBySite(c.Request.Context(), siteID)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, workers)
}

func (a *API) handleCreateWorker(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := a.deps.Sites.GetByID(c.Request.Context(), siteID); err != nil {
		respondRepoError(c, err)
		return
	}
	var payload workerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	worker, err := a.deps.Workers.Create(c.Request.Context(), repository.CreateWorkerRequest{
		SiteID:   siteID,
		FullName: strings.TrimSpace(payload.FullName),
		TaxCode:  strings.ToUpper(strings.TrimSpace(payload.TaxCode)),
		Role:     strings.TrimSpace(payload.Role),
	})
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, worker)
}

func (a *API) handleUpdateWorker(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var payload workerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	worker, err := a.deps.Workers.Update(c.Request.Context(), id, repository.CreateWorkerRequest{
		FullName: strings.TrimSpace(payload.FullName),
		TaxCode:  strings.ToUpper(strings.TrimSpace(payload.TaxCode)),
		Role:     strings.TrimSpace(payload.Role),
	})
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, worker)
}

func (a *API) handleDeleteWorker(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := a.deps.Workers.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- documents ---

func (a *API) handleListDocuments(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	docs, err := a.deps.Documents.ListBySite(c.Request.Context(), siteID)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (a *API) handleListExpiring(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	before := time.Now().AddDate(0, 0, 60)
	if s := c.Query("before"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "before must be YYYY-MM-DD")
			return
		}
		before = t
	}
	docs, err := a.deps.Documents.ListExpiring(c.Request.Context(), siteID, before)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// handleUploadDocument stores the file, runs the extraction pipeline, and
// persists the merged record. Extraction problems degrade the record; they do
// not fail the upload.
func (a *API) handleUploadDocument(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := a.deps.Sites.GetByID(ctx, siteID); err != nil {
		respondRepoError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing file")
		return
	}

	var workerID *uuid.UUID
	if s := c.PostForm("worker_id"); s != "" {
		w, err := uuid.Parse(s)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "invalid worker_id")
			return
		}
		if _, err := a.deps.Workers.GetByID(ctx, w); err != nil {
			respondRepoError(c, err)
			return
		}
		workerID = &w
	}

	upload, err := fileHeader.Open()
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	saved, err := a.deps.Files.SaveUpload(upload, fileHeader.Filename)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	res := a.deps.Pipeline.Extract(ctx, pipeline.Document{
		StoredPath:   saved.Path,
		OriginalName: fileHeader.Filename,
	})

	status := constants.DocStatusExtracted
	if res.NeedsReview {
		status = constants.DocStatusNeedsReview
	}

	doc, err := a.deps.Documents.Create(ctx, repository.CreateDocumentRequest{
		SiteID:       siteID,
		WorkerID:     workerID,
		FileName:     saved.FileName,
		OriginalName: fileHeader.Filename,
		StoredPath:   saved.Path,
		DocType:      res.Fields.DocType,
		HolderName:   res.Fields.HolderName,
		TaxCode:      res.Fields.TaxCode,
		IssueDate:    res.Fields.IssueDate,
		ExpiryDate:   res.Fields.ExpiryDate,
		Confidence:   res.Fields.ModelConfidence,
		OCRText:      res.RawText,
		OCRStub:      res.OCRStub,
		NeedsReview:  res.NeedsReview,
		Status:       string(status),
	})
	if err != nil {
		_ = a.deps.Files.Remove(saved.FileName)
		respondRepoError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":           true,
		"file":         saved.FileName,
		"url":          a.cfg.Server.BaseURL + "/files/" + saved.FileName,
		"ocr":          res.RawText,
		"ocr_stub":     res.OCRStub,
		"extracted":    res.Fields,
		"confidence":   res.Fields.ModelConfidence,
		"needs_review": res.NeedsReview,
		"document":     doc,
	})
}

func (a *API) handleGetDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := a.deps.Documents.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type reviewPayload struct {
	WorkerID   string `json:"worker_id"`
	DocType    string `json:"doc_type" binding:"required"`
	HolderName string `json:"holder_name"`
	TaxCode    string `json:"tax_code"`
	IssueDate  string `json:"issue_date"`
	ExpiryDate string `json:"expiry_date"`
}

func (a *API) handleReviewDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var payload reviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	docType, ok := constants.Canonicalize(payload.DocType)
	if !ok {
		respondMessage(c, http.StatusBadRequest, "unknown doc_type")
		return
	}
	for _, d := range []string{payload.IssueDate, payload.ExpiryDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			respondMessage(c, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}

	upd := repository.ReviewUpdate{
		DocType:    string(docType),
		HolderName: strings.TrimSpace(payload.HolderName),
		TaxCode:    strings.ToUpper(strings.TrimSpace(payload.TaxCode)),
		IssueDate:  payload.IssueDate,
		ExpiryDate: payload.ExpiryDate,
	}
	if payload.WorkerID != "" {
		w, err := uuid.Parse(payload.WorkerID)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "invalid worker_id")
			return
		}
		upd.WorkerID = &w
	}

	doc, err := a.deps.Documents.Review(c.Request.Context(), id, upd)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (a *API) handleDeleteDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	doc, err := a.deps.Documents.GetByID(ctx, id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if err := a.deps.Documents.Delete(ctx, id); err != nil {
		respondRepoError(c, err)
		return
	}
	_ = a.deps.Files.Remove(doc.FileName)
	c.Status(http.StatusNoContent)
}

// --- export and report ---

func (a *API) handleExportRegister(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	data, err := a.deps.Export.ExportSiteRegisterXLSX(c.Request.Context(), siteID)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	name := fmt.Sprintf("documenti-%s.xlsx", siteID)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (a *API) handleGenerateReport(c *gin.Context) {
	siteID, ok := parseID(c)
	if !ok {
		return
	}
	name := fmt.Sprintf("report-%s.pdf", siteID)
	out := a.deps.Files.ExportPath(name)
	if err := a.deps.Report.GenerateSiteReport(c.Request.Context(), siteID, out); err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":  true,
		"url": a.cfg.Server.BaseURL + "/exports/" + name,
	})
}

func (a *API) handleServeUpload(c *gin.Context) {
	path, err := a.deps.Files.UploadPath(c.Param("name"))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid file name")
		return
	}
	c.File(path)
}

func (a *API) handleServeExport(c *gin.Context) {
	name := c.Param("name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		respondMessage(c, http.StatusBadRequest, "invalid file name")
		return
	}
	c.File(a.deps.Files.ExportPath(name))
}
