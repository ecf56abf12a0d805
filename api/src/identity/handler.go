package identity

import (
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/rest"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type Handler struct {
	Service       *Service
	MaxImageBytes int64
}

func NewHandler(service *Service, maxImageBytes int64) *Handler {
	registerBindingValidations()
	return &Handler{Service: service, MaxImageBytes: maxImageBytes}
}

type VerifyForm struct {
	DocumentType   string                `form:"documentType" binding:"omitempty,oneof=CI"`
	DocumentNumber string                `form:"documentNumber" binding:"required,bo_ci"`
	Expedition     string                `form:"expedition" binding:"omitempty,bo_department"`
	FirstName      string                `form:"firstName" binding:"required,min=2,max=50"`
	LastName       string                `form:"lastName" binding:"required,min=2,max=50"`
	DateOfBirth    string                `form:"dateOfBirth" binding:"required,adult_dob"`
	OwnerKey       string                `form:"ownerKey" binding:"omitempty,owner_key"`
	UserAddress    string                `form:"userAddress" binding:"omitempty,owner_key"`
	DocumentImage  *multipart.FileHeader `form:"documentImage" binding:"required"`
}

func (f VerifyForm) owner() string {
	if f.OwnerKey != "" {
		return strings.ToLower(f.OwnerKey)
	}
	return strings.ToLower(f.UserAddress)
}

type RevokeRequest struct {
	Commitment         string `json:"commitment"`
	IdentityCommitment string `json:"identityCommitment"`
	Reason             string `json:"reason" binding:"required,min=10,max=500"`
}

// Verify godoc
// @Summary      Verify a citizen document and issue an anonymous identity
// @Tags         Identity
// @Accept       multipart/form-data
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Failure      429  {object}  map[string]interface{}
// @Router       /identity/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	var form VerifyForm
	if err := c.ShouldBind(&form); err != nil {
		_ = c.Error(apperror.FromBinding(err))
		return
	}
	owner := form.owner()
	if owner == "" {
		_ = c.Error(apperror.Validation("ownerKey es requerido", map[string]any{"fields": map[string]any{"ownerKey": "required"}}))
		return
	}

	image, contentType, err := rest.ReadImage(form.DocumentImage, h.MaxImageBytes)
	if err != nil {
		_ = c.Error(err)
		return
	}

	number, _ := NormalizeCI(form.DocumentNumber)
	department, _ := NormalizeDepartment(form.Expedition)
	issued, err := h.Service.Issue(c.Request.Context(), IssueRequest{
		OwnerKey:       owner,
		DocumentNumber: number,
		Department:     department,
		FirstName:      strings.TrimSpace(form.FirstName),
		LastName:       strings.TrimSpace(form.LastName),
		DateOfBirth:    form.DateOfBirth,
		Image:          image,
		ContentType:    contentType,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Identidad verificada exitosamente",
		"data": gin.H{
			"verified": true,
			"identity": gin.H{
				"commitment": issued.Commitment,
				"secret":     issued.Secret,
				"qr":         secretQr(issued.Secret),
			},
			"status":     issued.Status,
			"verifiedAt": issued.VerifiedAt,
		},
	})
}

// secretQr renders the identity secret as a base64 PNG so a wallet can scan it once.
func secretQr(secret string) string {
	png, err := qrcode.Encode(secret, qrcode.Medium, qrSize)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}

// Status godoc
// @Summary      Credential status of an owner key
// @Tags         Identity
// @Produce      json
// @Param        ownerKey  query  string  true  "Owner key"
// @Success      200  {object}  map[string]interface{}
// @Router       /identity/status [get]
func (h *Handler) Status(c *gin.Context) {
	owner := c.Query("ownerKey")
	if owner == "" {
		owner = c.Query("userAddress")
	}
	if owner == "" {
		owner = c.GetHeader("X-User-Address")
	}
	if !IsOwnerKey(owner) {
		_ = c.Error(apperror.Validation("ownerKey inválido", nil))
		return
	}

	st, err := h.Service.LookupStatus(c.Request.Context(), strings.ToLower(owner))
	if err != nil {
		_ = c.Error(err)
		return
	}

	data := gin.H{
		"isVerified": st.IsVerified,
		"canSubmit":  st.CanSubmit,
		"status":     st.Status,
	}
	if st.VerifiedAt != nil {
		data["verifiedAt"] = st.VerifiedAt
		data["identityCommitment"] = st.Commitment
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Revoke godoc
// @Summary      Revoke a credential and remove it from the group
// @Tags         Identity
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /identity/revoke [post]
func (h *Handler) Revoke(c *gin.Context) {
	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.FromBinding(err))
		return
	}
	commitment := req.Commitment
	if commitment == "" {
		commitment = req.IdentityCommitment
	}
	if commitment == "" {
		_ = c.Error(apperror.Validation("commitment es requerido", map[string]any{"fields": map[string]any{"commitment": "required"}}))
		return
	}

	rev, err := h.Service.Revoke(c.Request.Context(), commitment, strings.TrimSpace(req.Reason))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Identidad revocada exitosamente",
		"data": gin.H{
			"commitment": rev.Commitment,
			"revokedAt":  rev.RevokedAt,
		},
		"_internal": gin.H{"txHash": rev.TxHash},
	})
}
