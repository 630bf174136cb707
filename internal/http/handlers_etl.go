package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"menuetl/internal/services"
)

// etlUsage is the fixed informational reply when no row range is supplied.
const etlUsage = "ETL trigger is up. Pass start_row_index and end_row_index " +
	"(and source=training|testing) in the query string to process a batch."

// etlHandler implements GET /etl: parse the row range, serialize runs per
// source, run the pipeline, and return the logged outcome as the body.
func etlHandler(c *fiber.Ctx) error {
	startParam := c.Query("start_row_index")
	endParam := c.Query("end_row_index")
	if startParam == "" || endParam == "" {
		return c.Status(fiber.StatusOK).SendString(etlUsage)
	}

	start, err := strconv.Atoi(startParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ETLResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "start_row_index must be an integer",
		})
	}
	end, err := strconv.Atoi(endParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ETLResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "end_row_index must be an integer",
		})
	}

	source := c.Query("source")

	// Overlapping triggers for the same source would race on the sink.
	locker, _ := c.Locals("runlock").(*runLock)
	release, ok := locker.Acquire(c.Context(), source)
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(ETLResponse{
			Success: false,
			Code:    "RUN_IN_PROGRESS",
			Error:   "a run for this source is already in progress",
			Source:  source,
		})
	}
	defer release()

	runner := c.Locals("etl").(etlRunner)
	res := runner.Run(c.Context(), start, end, source)

	resp := ETLResponse{
		Success:   res.Status == services.StatusSuccess,
		Status:    res.Status,
		StartRow:  start,
		EndRow:    end,
		Source:    source,
		Processed: res.Processed,
	}

	httpStatus := fiber.StatusOK
	if res.Status != services.StatusSuccess {
		httpStatus = fiber.StatusUnprocessableEntity
		resp.Code = "ETL_FAILED"
		resp.Error = res.Message
	}

	return c.Status(httpStatus).JSON(resp)
}
