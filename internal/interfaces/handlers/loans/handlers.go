package loans

import (
	loansvc "loanchain-backend/internal/application/loans"
	"loanchain-backend/internal/pkg/apperr"
	"loanchain-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles loan handlers with the service.
type Handlers struct {
	Service *loansvc.Service
}

type investRequest struct {
	AmountToInvest float64 `json:"amountToInvest"`
}

// InvestInLoan PATCH /api/loans/:loanId/invest
func (h *Handlers) InvestInLoan(c *fiber.Ctx) error {
	loanID, err := uuid.Parse(c.Params("loanId"))
	if err != nil {
		return apperr.NewNotFound("Loan not found.")
	}
	var req investRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.NewValidation("Invalid investment amount.")
	}
	loan, err := h.Service.Invest(c.Context(), loanID, req.AmountToInvest)
	if err != nil {
		return err
	}
	return response.JSON(c, loan)
}

type updateStatusesResponse struct {
	Message      string `json:"message"`
	UpdatedCount int    `json:"updatedCount"`
}

// UpdateStatuses POST /api/loans/update-statuses
func (h *Handlers) UpdateStatuses(c *fiber.Ctx) error {
	updated, candidates, err := h.Service.UpdateExpiredStatuses(c.Context())
	if err != nil {
		return err
	}
	msg := "Loan statuses updated successfully."
	if candidates == 0 {
		msg = "No active loans have expired."
	}
	return response.JSON(c, updateStatusesResponse{Message: msg, UpdatedCount: updated})
}

type reconcileResponse struct {
	Message       string `json:"message"`
	RepairedCount int    `json:"repairedCount"`
}

// Reconcile POST /api/loans/reconcile
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	repaired, err := h.Service.ReconcileOnChain(c.Context())
	if err != nil {
		return err
	}
	return response.JSON(c, reconcileResponse{Message: "On-chain reconciliation completed.", RepairedCount: repaired})
}
