package controller

import (
	"errors"

	"ai-docsearch-be/internal/pkg/serverutils"
	"ai-docsearch-be/internal/service"
	"ai-docsearch-be/pkg/extract"
	"ai-docsearch-be/pkg/searchindex"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// toHTTPError maps domain errors to client-facing statuses. Anything not
// listed stays a 500.
func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrDocumentNotFound):
		return serverutils.NewHTTPError(fiber.StatusNotFound, "Document not found", err)
	case errors.Is(err, service.ErrForbidden):
		return serverutils.NewHTTPError(fiber.StatusForbidden, "Document belongs to another user", err)
	case errors.Is(err, service.ErrEmptyFile):
		return serverutils.NewHTTPError(fiber.StatusBadRequest, "File is empty", err)
	case errors.Is(err, extract.ErrUnsupportedType):
		return serverutils.NewHTTPError(fiber.StatusUnsupportedMediaType, "Unsupported file type", err)
	case errors.Is(err, searchindex.ErrOwnerRequired):
		return serverutils.NewHTTPError(fiber.StatusUnauthorized, "Unauthorized", err)
	}

	var ingestErr *service.IngestionError
	if errors.As(err, &ingestErr) {
		return serverutils.NewHTTPError(fiber.StatusUnprocessableEntity, "Document processing failed", err)
	}
	return err
}

func paramID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, serverutils.NewHTTPError(fiber.StatusBadRequest, "Invalid document id", err)
	}
	return id, nil
}
