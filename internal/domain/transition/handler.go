package transition

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
	api.POST("/transitions/assign", h.Assign)
	api.POST("/transitions/transfers/:patientId/complete", h.CompleteTransfer)
	api.POST("/transitions/transfers/:patientId/cancel", h.CancelTransfer)
	api.POST("/transitions/transfers/:patientId/cancel-confirmed", h.CancelConfirmedTransfer)
	api.POST("/transitions/searches/:patientId/start", h.StartSearch)
	api.POST("/transitions/searches/:patientId/cancel", h.CancelSearch)

	api.POST("/transitions/referrals/:patientId/request", h.RequestReferral)
	api.POST("/transitions/referrals/:patientId/accept", h.AcceptReferral)
	api.POST("/transitions/referrals/:patientId/reject", h.RejectReferral)
	api.POST("/transitions/referrals/:patientId/egress", h.ConfirmReferralEgress)
	api.POST("/transitions/referrals/:patientId/cancel-origin", h.CancelReferralFromOrigin)
	api.POST("/transitions/referrals/:patientId/cancel-waiting", h.CancelReferralFromWaitingList)

	api.POST("/transitions/discharges/:patientId/start", h.StartDischarge)
	api.POST("/transitions/discharges/:patientId/execute", h.ExecuteDischarge)
	api.POST("/transitions/discharges/:patientId/cancel", h.CancelDischarge)

	api.POST("/transitions/deceased/:patientId/mark", h.MarkDeceased)
	api.POST("/transitions/deceased/:patientId/unmark", h.UnmarkDeceased)
	api.POST("/transitions/deceased/:patientId/egress", h.EgressDeceased)

	api.POST("/transitions/oxygen/:patientId/skip", h.SkipOxygenPause)

	api.POST("/beds/:bedId/cleaning/start", h.StartCleaning)
	api.POST("/beds/:bedId/cleaning/finish", h.FinishCleaning)
	api.POST("/beds/:bedId/block", h.Block)
	api.POST("/beds/:bedId/unblock", h.Unblock)
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func bedID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("bedId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	return id, nil
}

func (h *Handler) Assign(c echo.Context) error {
	var req struct {
		PatientID uuid.UUID `json:"patient_id"`
		BedID     uuid.UUID `json:"bed_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Assign(c.Request().Context(), req.PatientID, req.BedID); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CompleteTransfer(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CompleteTransfer(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelTransfer(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	fromOrigin := c.QueryParam("from_origin") == "true"
	if err := h.svc.CancelTransfer(c.Request().Context(), id, fromOrigin); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelConfirmedTransfer(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelConfirmedTransfer(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartSearch(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.StartSearch(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelSearch(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelSearch(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RequestReferral(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req struct {
		HospitalID uuid.UUID `json:"hospital_id"`
		Reason     string    `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RequestReferral(c.Request().Context(), id, req.HospitalID, req.Reason); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AcceptReferral(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.AcceptReferral(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RejectReferral(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RejectReferral(c.Request().Context(), id, req.Reason); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ConfirmReferralEgress(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ConfirmReferralEgress(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelReferralFromOrigin(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelReferralFromOrigin(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelReferralFromWaitingList(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelReferralFromWaitingList(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartDischarge(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.StartDischarge(c.Request().Context(), id, req.Reason); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExecuteDischarge(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ExecuteDischarge(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelDischarge(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelDischarge(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkDeceased(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.MarkDeceased(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnmarkDeceased(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.UnmarkDeceased(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) EgressDeceased(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.EgressDeceased(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SkipOxygenPause(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.SkipOxygenPause(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartCleaning(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	if err := h.svc.StartCleaning(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) FinishCleaning(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	if err := h.svc.FinishCleaning(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Block(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Block(c.Request().Context(), id, req.Reason); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Unblock(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Unblock(c.Request().Context(), id); err != nil {
		return errs.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
