package adminapi

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/service"
)

type createKeysResponse struct {
	Response
	*service.CreateKeysResult
}

type keyPageResponse struct {
	Response
	*service.KeyPage
}

type keyDetailsResponse struct {
	Response
	*service.KeyDetails
}

type keyResponse struct {
	Response
	Key *service.KeyView `json:"key"`
}

type countResponse struct {
	Response
	Count int64 `json:"count"`
}

func registerKeys(r fiber.Router, svc *service.Service) {
	g := r.Group("/keys")

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req service.CreateKeysRequest
			if err := parseOptionalBody(c, &req); err != nil {
				return badBody(c)
			}
			res, err := svc.CreateKeys(c.UserContext(), req)
			if err != nil {
				return writeError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(
				createKeysResponse{
					Response:         ok(fmt.Sprintf("generated %d keys", len(res.Keys))),
					CreateKeysResult: res,
				},
			)
		},
	)

	g.Get(
		"/", func(c *fiber.Ctx) error {
			res, err := svc.ListKeys(
				c.UserContext(), service.ListKeysRequest{
					Search:  c.Query("search"),
					Status:  c.Query("status"),
					Page:    c.QueryInt("page"),
					PerPage: c.QueryInt("per_page"),
				},
			)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				keyPageResponse{
					Response: ok(""),
					KeyPage:  res,
				},
			)
		},
	)

	g.Delete(
		"/", func(c *fiber.Ctx) error {
			n, err := svc.DeleteAllKeys(c.UserContext())
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				countResponse{
					Response: ok(fmt.Sprintf("deleted %d keys", n)),
					Count:    n,
				},
			)
		},
	)

	bulk := func(paused bool, verb string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			n, err := svc.SetAllPaused(c.UserContext(), paused)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				countResponse{
					Response: ok(fmt.Sprintf("%s %d keys", verb, n)),
					Count:    n,
				},
			)
		}
	}
	g.Post("/pause-all", bulk(true, "paused"))
	g.Post("/resume-all", bulk(false, "resumed"))

	g.Get(
		"/:id", func(c *fiber.Ctx) error {
			res, err := svc.GetKey(c.UserContext(), c.Params("id"))
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				keyDetailsResponse{
					Response:   ok(""),
					KeyDetails: res,
				},
			)
		},
	)

	g.Delete(
		"/:id", func(c *fiber.Ctx) error {
			id := c.Params("id")
			if err := svc.DeleteKey(c.UserContext(), id); err != nil {
				return writeError(c, err)
			}
			return c.JSON(ok(fmt.Sprintf("key %s deleted", id)))
		},
	)

	mutate := func(message string, op func(ctx context.Context, id string) (*service.KeyView, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			key, err := op(c.UserContext(), c.Params("id"))
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				keyResponse{
					Response: ok(fmt.Sprintf(message, key.KeyID)),
					Key:      key,
				},
			)
		}
	}
	g.Post("/:id/reset-hwid", mutate("hwid of key %s reset", svc.ResetHWID))
	g.Post(
		"/:id/pause", mutate(
			"key %s paused", func(ctx context.Context, id string) (*service.KeyView, error) {
				return svc.SetPaused(ctx, id, true)
			},
		),
	)
	g.Post(
		"/:id/resume", mutate(
			"key %s resumed", func(ctx context.Context, id string) (*service.KeyView, error) {
				return svc.SetPaused(ctx, id, false)
			},
		),
	)
	g.Post(
		"/:id/deactivate", mutate(
			"key %s deactivated", func(ctx context.Context, id string) (*service.KeyView, error) {
				return svc.SetActive(ctx, id, false)
			},
		),
	)
	g.Post(
		"/:id/reactivate", mutate(
			"key %s reactivated", func(ctx context.Context, id string) (*service.KeyView, error) {
				return svc.SetActive(ctx, id, true)
			},
		),
	)
}
