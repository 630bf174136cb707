package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"menuetl/internal/extract"
	"menuetl/internal/llm"
)

// adhocExtractHandler implements POST /v1/extract: run the extraction core
// on inline rows, without reading from or writing to the database. Callers
// with a foreign schema may supply a column mapping, and tests of alternate
// vocabularies may supply their own allowed types.
func adhocExtractHandler(c *fiber.Ctx) error {
	var reqBody AdhocExtractRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(AdhocExtractResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}

	if len(reqBody.Rows) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(AdhocExtractResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'rows'",
		})
	}

	rows := make([]extract.RawRow, len(reqBody.Rows))
	for i, r := range reqBody.Rows {
		rows[i] = extract.RawRow(r)
	}

	client := c.Locals("classifier").(llm.Classifier)

	records, err := extract.NewRunner(client).Run(c.Context(), rows, extract.Options{
		ColumnMapping: reqBody.ColumnMapping,
		AllowedTypes:  reqBody.AllowedTypes,
	})
	if err != nil {
		code := "UPSTREAM_CALL_FAILED"
		status := fiber.StatusBadGateway

		var valErr *extract.ValidationError
		var sizeErr *extract.BatchSizeError
		var decErr *llm.DecodeError
		switch {
		case errors.As(err, &valErr):
			code = "VALIDATION_FAILED"
			status = fiber.StatusUnprocessableEntity
		case errors.As(err, &sizeErr):
			code = "BATCH_SIZE_MISMATCH"
			status = fiber.StatusUnprocessableEntity
		case errors.As(err, &decErr):
			code = "DECODE_FAILED"
			status = fiber.StatusUnprocessableEntity
		}

		return c.Status(status).JSON(AdhocExtractResponse{
			Success: false,
			Code:    code,
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(AdhocExtractResponse{
		Success: true,
		Data:    records,
	})
}
