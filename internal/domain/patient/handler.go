package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/camanet/camanet/internal/platform/errs"
	"github.com/camanet/camanet/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.Create)
	api.GET("/patients", h.List)
	api.GET("/patients/:id", h.Get)
	api.PATCH("/patients/:id/clinical", h.UpdateClinical)
	api.GET("/hospitals/:id/waiting-list", h.WaitingList)
}

func (h *Handler) Create(c echo.Context) error {
	var in Intake
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id is required")
	}
	includeRetired := c.QueryParam("include_retired") == "true"
	page := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), hospitalID, includeRetired, page.Limit, page.Offset)
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateClinical(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var up ClinicalUpdate
	if err := c.Bind(&up); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateClinical(c.Request().Context(), id, up)
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) WaitingList(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.Waiting(c.Request().Context(), hospitalID)
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}
