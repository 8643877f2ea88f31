package server

import (
	"errors"
	"io"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize    = 20
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter as a positive uint. On failure it
// writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// currentUserID returns the authenticated user set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// statusFor maps an application error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case models.CodeValidation, models.CodeAuth, models.CodeConflict:
		return fiber.StatusUnprocessableEntity
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeVersionConflict:
		return fiber.StatusConflict
	case models.CodeStorage:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes err with the status its code maps to. Errors
// without a code are logged and reported as internal errors.
func respondServiceError(c *fiber.Ctx, err error) error {
	appErr, ok := models.AsAppError(err)
	if !ok {
		middleware.Logger.ErrorContext(c.UserContext(), "unexpected service error", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	status := statusFor(appErr.Code)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("code", appErr.Code),
			slog.String("error", appErr.Error()),
		)
	}
	return models.RespondWithError(c, status, appErr)
}

// readUpload loads the multipart file in field. A missing file, or a body
// that is not multipart at all, yields nil so callers can apply their own
// "no file" rule. A multipart body that cannot be parsed is rejected.
func readUpload(c *fiber.Ctx, field string) (*service.Upload, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form.")
	}

	f, err := header.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read the uploaded file.")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Could not read the uploaded file.")
	}

	return &service.Upload{Data: data}, nil
}
