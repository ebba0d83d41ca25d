// Package jobdelivery manages delivery layer of recalculation jobs.
package jobdelivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/minibank/ledger-api/internal/domain"
	"github.com/minibank/ledger-api/pkg/web"
)

// Service provides the job registry interface needed by job delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package jobdelivery
type Service interface {
	Get(id string) (domain.Job, error)
	List() []domain.Job
}

// Handler facilitates job delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns job handler.
func NewHandler(js Service) Handler {
	return Handler{service: js}
}

type dataJobs struct {
	Jobs []domain.Job `json:"jobs"`
}

// List handles http request to list all known jobs in submission order.
func (h *Handler) List(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, web.Response{Data: dataJobs{h.service.List()}})
}

type getRequest struct {
	ID string `uri:"id" binding:"required"`
}

type data struct {
	Job domain.Job `json:"job"`
}

// Get handles http request to get a single job's status.
func (h *Handler) Get(gctx *gin.Context) {
	l := zerolog.Ctx(gctx)

	var req getRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	job, err := h.service.Get(req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(err))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: data{job}})
}
