package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/storage/model"
)

type usersResponse struct {
	Response
	Users []model.User `json:"users"`
}

type userResponse struct {
	Response
	User *model.User `json:"user"`
}

// registerUsers wires handlers using a UsersStore abstraction.
func registerUsers(r fiber.Router, users model.UsersStore) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			if err != nil {
				return writeError(c, err)
			}
			if list == nil {
				list = []model.User{}
			}
			return c.JSON(
				usersResponse{
					Response: ok(""),
					Users:    list,
				},
			)
		},
	)

	type createReq struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req createReq
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			if req.Username == "" || req.Password == "" {
				return failed(c, fiber.StatusBadRequest, "username and password are required")
			}
			u, err := users.Create(req.Username, req.Password, req.DisplayName)
			if err != nil {
				return writeError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(
				userResponse{
					Response: ok("user created"),
					User:     u,
				},
			)
		},
	)

	type updateReq struct {
		DisplayName *string `json:"display_name"`
		Password    *string `json:"password"`
		Disabled    *bool   `json:"disabled"`
	}
	g.Put(
		"/:username", func(c *fiber.Ctx) error {
			var req updateReq
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			if req.Password != nil && *req.Password == "" {
				return failed(c, fiber.StatusBadRequest, "password cannot be empty")
			}
			u, err := users.Update(c.Params("username"), req.DisplayName, req.Password, req.Disabled)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				userResponse{
					Response: ok("user updated"),
					User:     u,
				},
			)
		},
	)

	g.Get(
		"/:username", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("username"))
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(
				userResponse{
					Response: ok(""),
					User:     u,
				},
			)
		},
	)

	g.Delete(
		"/:username", func(c *fiber.Ctx) error {
			if err := users.Delete(c.Params("username")); err != nil {
				return writeError(c, err)
			}
			return c.JSON(ok("user deleted"))
		},
	)
}
