package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/service"
)

type statsResponse struct {
	Response
	*service.Stats
}

func registerStats(r fiber.Router, svc *service.Service) {
	r.Get(
		"/stats", func(c *fiber.Ctx) error {
			stats, err := svc.Stats(c.UserContext())
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				statsResponse{
					Response: ok(""),
					Stats:    stats,
				},
			)
		},
	)
}
