package assign

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/camanet/camanet/internal/platform/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/hospitals/:id/assignments/run", h.Run)
	api.GET("/patients/:id/bed-candidate", h.BedCandidate)
	api.GET("/patients/:id/network-candidates", h.NetworkCandidates)
}

func (h *Handler) Run(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital id")
	}
	results, err := h.svc.RunAutomaticAssignment(c.Request().Context(), hospitalID)
	if err != nil {
		return errs.HTTPError(err)
	}
	if results == nil {
		results = []Result{}
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) BedCandidate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	bc, err := h.svc.FindBedForPatient(c.Request().Context(), id)
	if err != nil {
		return errs.HTTPError(err)
	}
	if bc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no compatible free bed")
	}
	return c.JSON(http.StatusOK, bc)
}

func (h *Handler) NetworkCandidates(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	found, err := h.svc.SearchNetwork(c.Request().Context(), id)
	if err != nil {
		return errs.HTTPError(err)
	}
	if found == nil {
		found = []NetworkCandidate{}
	}
	return c.JSON(http.StatusOK, found)
}
