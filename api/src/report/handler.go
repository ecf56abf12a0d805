package report

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/rest"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type Handler struct {
	Orchestrator  *Orchestrator
	MaxImageBytes int64
}

func NewHandler(orchestrator *Orchestrator, maxImageBytes int64) *Handler {
	return &Handler{Orchestrator: orchestrator, MaxImageBytes: maxImageBytes}
}

// SubmitForm is the multipart body of POST /reports. location and zkProof are JSON
// documents sent as form fields.
type SubmitForm struct {
	Category    *int                  `form:"category" binding:"required,min=0,max=4"`
	Description string                `form:"description" binding:"omitempty,max=500"`
	Location    string                `form:"location" binding:"required"`
	ZkProof     string                `form:"zkProof" binding:"required"`
	OwnerSecret string                `form:"ownerSecret"`
	UserSecret  string                `form:"userSecret"`
	Photo       *multipart.FileHeader `form:"photo" binding:"required"`
}

type Location struct {
	Lat      *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Long     *float64 `json:"long" binding:"required,gte=-180,lte=180"`
	Accuracy float64  `json:"accuracy" binding:"omitempty,gte=0"`
}

type NearbyParams struct {
	Lat      *float64 `form:"lat" binding:"required,gte=-90,lte=90"`
	Long     *float64 `form:"long" binding:"required,gte=-180,lte=180"`
	RadiusKm float64  `form:"radiusKm" binding:"omitempty,gt=0,lte=50"`
	Category *int     `form:"category" binding:"omitempty,min=0,max=4"`
	Limit    int      `form:"limit" binding:"omitempty,min=1,max=100"`
}

type RecentParams struct {
	Category *int `form:"category" binding:"omitempty,min=0,max=4"`
	Limit    int  `form:"limit" binding:"omitempty,min=1,max=100"`
}

func categoryOf(v *int) *model.Category {
	if v == nil {
		return nil
	}
	c := model.Category(*v)
	return &c
}

func parseLocation(raw string) (Location, error) {
	var loc Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return loc, apperror.Validation("Ubicación inválida", map[string]any{"fields": map[string]any{"location": "json"}})
	}
	if err := binding.Validator.ValidateStruct(&loc); err != nil {
		return loc, apperror.FromBinding(err)
	}
	return loc, nil
}

// Submit godoc
// @Summary      Submit an anonymous report backed by a membership proof
// @Tags         Reports
// @Accept       multipart/form-data
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /reports [post]
func (h *Handler) Submit(c *gin.Context) {
	var form SubmitForm
	if err := c.ShouldBind(&form); err != nil {
		_ = c.Error(apperror.FromBinding(err))
		return
	}
	loc, err := parseLocation(form.Location)
	if err != nil {
		_ = c.Error(err)
		return
	}
	photo, contentType, err := rest.ReadImage(form.Photo, h.MaxImageBytes)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// ownerSecret and userSecret are accepted for older clients but never read: the proof
	// alone authorizes the report
	res, err := h.Orchestrator.Submit(c.Request.Context(), SubmitRequest{
		Photo:       photo,
		ContentType: contentType,
		Category:    model.Category(*form.Category),
		Description: form.Description,
		Lat:         *loc.Lat,
		Long:        *loc.Long,
		Accuracy:    loc.Accuracy,
		Proof:       json.RawMessage(form.ZkProof),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"reportId": res.ReportId,
		"status":   res.Status,
		"recompensa": gin.H{
			"puntos":  res.Points,
			"mensaje": res.RewardMessage(),
		},
		"mensaje": res.Message,
		"_internal": gin.H{
			"recordId":      res.Receipt.RecordId,
			"txHash":        res.Receipt.TxHash,
			"blockNumber":   res.Receipt.BlockNumber,
			"gasUsed":       res.Receipt.GasUsed,
			"gasCost":       res.Receipt.GasCost,
			"chainReportId": res.Receipt.ChainReportId,
		},
	})
}

// Nearby godoc
// @Summary      Reports around a point
// @Tags         Reports
// @Produce      json
// @Param        lat       query  number  true   "Latitude"
// @Param        long      query  number  true   "Longitude"
// @Param        radiusKm  query  number  false  "Radius in km, at most 50"
// @Param        category  query  int     false  "Category 0-4"
// @Param        limit     query  int     false  "At most 100"
// @Success      200  {object}  map[string]interface{}
// @Router       /reports/nearby [get]
func (h *Handler) Nearby(c *gin.Context) {
	var p NearbyParams
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(apperror.FromBinding(err))
		return
	}

	reports, err := h.Orchestrator.Nearby(c.Request.Context(), NearbyQuery{
		Lat:      *p.Lat,
		Long:     *p.Long,
		RadiusKm: p.RadiusKm,
		Category: categoryOf(p.Category),
		Limit:    p.Limit,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": reports})
}

// Recent godoc
// @Summary      Latest reports
// @Tags         Reports
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /reports/recent [get]
func (h *Handler) Recent(c *gin.Context) {
	var p RecentParams
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(apperror.FromBinding(err))
		return
	}
	reports, err := h.Orchestrator.Recent(c.Request.Context(), p.Limit, categoryOf(p.Category))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": reports})
}

// Get godoc
// @Summary      One report by id
// @Tags         Reports
// @Produce      json
// @Param        id  path  string  true  "Report id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /reports/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	view, err := h.Orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reporte": gin.H{
			"reportId":     view.Record.ReportId,
			"protocol":     view.Record.Protocol,
			"category":     view.Record.Category,
			"evidence": gin.H{
				"description": view.Record.Evidence.Description,
				"aiGenerated": view.Record.Evidence.AIGenerated,
				"tags":        view.Record.Evidence.Tags,
				"severity":    view.Record.Evidence.Severity,
			},
			"location":     view.Record.Location,
			"verification": gin.H{"verified": view.Record.Verification.Verified},
			"timestamp":    view.Record.Timestamp,
			"status":       view.Status,
		},
		"_internal": gin.H{
			"recordId":      view.Receipt.RecordId,
			"txHash":        view.Receipt.TxHash,
			"chainReportId": view.Receipt.ChainReportId,
			"cid":           view.Record.Evidence.Cid,
			"contentHash":   view.Record.Evidence.ContentHash,
		},
	})
}
