package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"forecastd/internal/forecast"
	"forecastd/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. All forecast
// reads go through the coordinator, so hitting any of them triggers the
// one-time startup initialization.
func RegisterRoutes(app *fiber.App, coordinator *forecast.Coordinator) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		records, err := coordinator.GetFrom(c.Context(), forecast.Today())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast")
		}
		if records == nil {
			records = []forecast.Record{}
		}
		return c.JSON(fiber.Map{
			"days": records,
		})
	})

	v1.Get("/forecast/:date", func(c *fiber.Ctx) error {
		date, err := parseDateParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		record, err := coordinator.GetByDate(c.Context(), date)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast for requested date")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast")
		}
		return c.JSON(record)
	})

	// Manual counterpart of the periodic trigger. Responds as soon as the
	// fetch is dispatched, not when it completes.
	v1.Post("/refresh", func(c *fiber.Ctx) error {
		coordinator.HandlePeriodicTrigger()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "dispatched",
		})
	})
}

// dateParam holds the path parameter for the detail endpoint.
type dateParam struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

func parseDateParam(c *fiber.Ctx) (time.Time, error) {
	p := dateParam{Date: c.Params("date")}
	if err := validate.Struct(p); err != nil {
		return time.Time{}, errors.New("date must be formatted as YYYY-MM-DD")
	}
	t, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return time.Time{}, errors.New("date must be formatted as YYYY-MM-DD")
	}
	return forecast.NormalizeDate(t), nil
}
