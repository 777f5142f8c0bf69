package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/service"
)

type logPageResponse struct {
	Response
	*service.LogPage
}

func registerLogs(r fiber.Router, svc *service.Service) {
	r.Get(
		"/logs", func(c *fiber.Ctx) error {
			res, err := svc.ListLogs(
				c.UserContext(), service.ListLogsRequest{
					KeySearch:   c.Query("key"),
					SuccessOnly: c.QueryBool("success_only"),
					Action:      c.Query("action"),
					Page:        c.QueryInt("page"),
					PerPage:     c.QueryInt("per_page"),
				},
			)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				logPageResponse{
					Response: ok(""),
					LogPage:  res,
				},
			)
		},
	)
}
