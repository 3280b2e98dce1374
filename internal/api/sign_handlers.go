package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/signature"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// IssueSignature generates a signing link for a document stage and emails it
// to the recipient. The previous outstanding link for the stage stops working.
func (h *Handler) IssueSignature(c *gin.Context) {
	var req models.IssueSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	if !req.Stage.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid stage",
			Message: "Stage must be manager or client",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.coordinator.IssueToken(ctx, c.Param("id"), req.Stage, req.SignerEmail, req.SignerName)
	if err != nil {
		switch {
		case errors.Is(err, signature.ErrQuoteMissing):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
				Error:   "Quote required",
				Message: "Sign-off needs a recorded quote",
			})
		case errors.Is(err, signature.ErrStageOrder):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "Manager signature required first",
				Message: "The client link can only be issued after internal sign-off",
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Failed to issue signing link",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetSignPage is the read-only check behind the public signing page. It never
// consumes the token.
func (h *Handler) GetSignPage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := h.coordinator.ValidateToken(ctx, c.Param("token"))
	if err != nil {
		h.writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// PostSign records a signature against a valid token. Manager-stage sign-off
// through the staff UI additionally requires the approval PIN when one is
// configured.
func (h *Handler) PostSign(c *gin.Context) {
	var req models.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	if req.ConsentType != models.ConsentClick && req.ConsentType != models.ConsentDrawn {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid consent type",
			Message: "Consent type must be click or drawn",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token := c.Param("token")

	info, err := h.coordinator.ValidateToken(ctx, token)
	if err != nil {
		h.writeTokenError(c, err)
		return
	}
	if info.Stage == models.StageManager && h.pinHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(h.pinHash), []byte(req.Pin)) != nil {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Invalid PIN",
				Message: "Internal approval requires the correct PIN",
			})
			return
		}
	}

	result, err := h.coordinator.RecordSignature(ctx, token, req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, signature.ErrStageOrder) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "Manager signature required first",
				Message: "The client signature can only be recorded after internal sign-off",
			})
			return
		}
		h.writeTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeTokenError maps the token error taxonomy to statuses, always carrying
// the machine-readable reason so the page can tell "expired" from "used".
func (h *Handler) writeTokenError(c *gin.Context, err error) {
	reason := signature.Reason(err)
	var status int
	var message string
	switch reason {
	case "malformed":
		status, message = http.StatusBadRequest, "This signing link is not valid"
	case "not_found":
		status, message = http.StatusNotFound, "This signing link is not recognized; a newer link may have replaced it"
	case "expired":
		status, message = http.StatusGone, "This signing link has expired; ask for a new one"
	case "used":
		status, message = http.StatusConflict, "This signing link has already been used"
	default:
		status, message = http.StatusInternalServerError, err.Error()
	}
	c.JSON(status, models.ErrorResponse{Error: reason, Message: message})
}
