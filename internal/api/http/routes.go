package httpapi

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weathertracker/internal/common"
	"github.com/i474232898/weathertracker/internal/store"
	"github.com/i474232898/weathertracker/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	app.Post("/measurements", func(c *fiber.Ctx) error {
		m, err := decodeMeasurement(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := service.Add(c.UserContext(), m); err != nil {
			return serviceError(err)
		}

		c.Location("/measurements/" + common.FormatInstant(m.Timestamp()))
		return c.SendStatus(fiber.StatusCreated)
	})

	app.Get("/measurements", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		measurements, err := service.QueryRange(c.UserContext(), req.From, req.To)
		if err != nil {
			return serviceError(err)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(encodeMeasurements(measurements))
	})

	app.Get("/measurements/:timestamp", func(c *fiber.Ctx) error {
		ts, err := timestampParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		m, err := service.Fetch(c.UserContext(), ts)
		if err != nil {
			return serviceError(err)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(encodeMeasurement(m))
	})

	app.Delete("/measurements/:timestamp", func(c *fiber.Ctx) error {
		ts, err := timestampParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if _, err := service.Delete(c.UserContext(), ts); err != nil {
			return serviceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		var req statsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := req.statistics()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := service.Stats(c.UserContext(), req.From, req.To, req.Metrics, stats)
		if err != nil {
			return serviceError(err)
		}
		return c.JSON(results)
	})
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// serviceError maps domain and store errors onto HTTP statuses.
func serviceError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no measurement for requested timestamp")
	case errors.Is(err, weather.ErrUnsupportedStatistic):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "measurement store unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "measurement store failure")
	}
}

func timestampParam(c *fiber.Ctx) (time.Time, error) {
	raw, err := url.PathUnescape(c.Params("timestamp"))
	if err != nil {
		return time.Time{}, err
	}
	return common.ParseInstant(raw)
}

// rangeQuery holds query parameters for the range endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	from, to, err := bindInterval(c, "from", "to")
	if err != nil {
		return err
	}
	r.From, r.To = from, to
	return nil
}

// statsQuery holds query parameters for the stats endpoint.
type statsQuery struct {
	Metrics []string  `validate:"required,min=1,dive,required"`
	Stats   []string  `validate:"required,min=1,dive,required"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required,gtefield=From"`
}

func (s *statsQuery) bind(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	for _, v := range args.PeekMulti("metric") {
		s.Metrics = append(s.Metrics, string(v))
	}
	for _, v := range args.PeekMulti("stat") {
		s.Stats = append(s.Stats, string(v))
	}

	from, to, err := bindInterval(c, "fromDateTime", "toDateTime")
	if err != nil {
		return err
	}
	s.From, s.To = from, to
	return nil
}

func (s statsQuery) statistics() ([]weather.Statistic, error) {
	stats := make([]weather.Statistic, 0, len(s.Stats))
	for _, name := range s.Stats {
		stat, err := weather.ParseStatistic(name)
		if err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func bindInterval(c *fiber.Ctx, fromKey, toKey string) (time.Time, time.Time, error) {
	fromStr := c.Query(fromKey)
	toStr := c.Query(toKey)
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New(fromKey + " and " + toKey + " query parameters are required")
	}

	from, err := common.ParseInstant(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := common.ParseInstant(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
