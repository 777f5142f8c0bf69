package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage"
)

type loginSettingsResponse struct {
	Response
	storage.LoginSettings
}

func registerSettings(r fiber.Router, svc *service.Service) {
	g := r.Group("/settings")

	g.Get(
		"/login", func(c *fiber.Ctx) error {
			settings, err := svc.LoginSettings(c.UserContext())
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				loginSettingsResponse{
					Response:      ok(""),
					LoginSettings: settings,
				},
			)
		},
	)

	type updateReq struct {
		LogNotFound *bool `json:"log_not_found"`
	}
	g.Put(
		"/login", func(c *fiber.Ctx) error {
			var req updateReq
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			if req.LogNotFound == nil {
				return failed(c, fiber.StatusBadRequest, "log_not_found: is required")
			}
			settings := storage.LoginSettings{LogNotFound: *req.LogNotFound}
			if err := svc.UpdateLoginSettings(c.UserContext(), settings); err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				loginSettingsResponse{
					Response:      ok("login settings updated"),
					LoginSettings: settings,
				},
			)
		},
	)
}
