package institutions

import (
	"os"
	"path/filepath"

	ingestsvc "loanchain-backend/internal/application/ingestion"
	instsvc "loanchain-backend/internal/application/institutions"
	"loanchain-backend/internal/pkg/apperr"
	"loanchain-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles institution handlers with their services.
type Handlers struct {
	Service   *instsvc.Service
	Ingestion *ingestsvc.Service
}

// CreateInstitution POST /api/institutions
func (h *Handlers) CreateInstitution(c *fiber.Ctx) error {
	var in instsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.NewValidation("invalid request body")
	}
	inst, err := h.Service.Create(c.Context(), in)
	if err != nil {
		return err
	}
	return response.Created(c, inst)
}

// GetInstitutions GET /api/institutions
func (h *Handlers) GetInstitutions(c *fiber.Ctx) error {
	insts, err := h.Service.List(c.Context())
	if err != nil {
		return err
	}
	return response.JSON(c, insts)
}

// UploadLoanCSV POST /api/institutions/:institutionId/upload
// The multipart upload is spooled to a temp file that is removed on every
// exit path, success and failure alike.
func (h *Handlers) UploadLoanCSV(c *fiber.Ctx) error {
	institutionID, err := uuid.Parse(c.Params("institutionId"))
	if err != nil {
		return apperr.NewNotFound("Institution not found")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.NewValidation("file is required")
	}

	tmpPath := filepath.Join(os.TempDir(), "loan-upload-"+uuid.New().String()+".csv")
	if err := c.SaveFile(fh, tmpPath); err != nil {
		return apperr.NewStore("Server error during file upload.", err)
	}
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		return apperr.NewStore("Server error during file upload.", err)
	}
	defer f.Close()

	result, err := h.Ingestion.UploadCSV(c.Context(), institutionID, f)
	if err != nil {
		return err
	}
	return response.Created(c, result)
}

// GetInstitutionLoans GET /api/institutions/:institutionId/loans
func (h *Handlers) GetInstitutionLoans(c *fiber.Ctx) error {
	institutionID, err := uuid.Parse(c.Params("institutionId"))
	if err != nil {
		return apperr.NewNotFound("Institution not found")
	}
	loans, err := h.Service.Loans(c.Context(), institutionID)
	if err != nil {
		return err
	}
	return response.JSON(c, loans)
}

// GetDashboard GET /api/institutions/dashboard/:institutionId
func (h *Handlers) GetDashboard(c *fiber.Ctx) error {
	institutionID, err := uuid.Parse(c.Params("institutionId"))
	if err != nil {
		return apperr.NewNotFound("Institution not found")
	}
	data, err := h.Service.Dashboard(c.Context(), institutionID)
	if err != nil {
		return err
	}
	return response.JSON(c, data)
}
