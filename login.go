package keygate

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/keygate/keygate/lifecycle"
	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage/model"
)

type loginRequest struct {
	Key  string `json:"key"`
	HWID string `json:"hwid"`
}

type loginResponse struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Message      string        `json:"message"`
	FirstUse     bool          `json:"first_use"`
	Status       *model.Status `json:"status,omitempty"`
	FirstLoginAt *time.Time    `json:"first_login_at"`
	ExpiresAt    *time.Time    `json:"expires_at"`
	Receipt      string        `json:"receipt,omitempty"`
}

var rejections = map[lifecycle.Reason]struct {
	status  int
	message string
}{
	lifecycle.ReasonNotFound:     {fiber.StatusNotFound, "key not found"},
	lifecycle.ReasonInactive:     {fiber.StatusForbidden, "key is inactive"},
	lifecycle.ReasonPaused:       {fiber.StatusForbidden, "key is paused"},
	lifecycle.ReasonHWIDMismatch: {fiber.StatusUnauthorized, "hwid not authorized for this key"},
	lifecycle.ReasonExpired:      {fiber.StatusUnauthorized, "key expired"},
}

func loginFailed(ctx *fiber.Ctx, status int, reason, message string) error {
	return ctx.Status(status).JSON(
		loginResponse{
			Success: false,
			Error:   reason,
			Message: message,
		},
	)
}

func (kg *KeyGate) handleLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return loginFailed(ctx, fiber.StatusBadRequest, "invalid request", "key and hwid are required")
	}
	res, err := kg.svc.Login(
		ctx.UserContext(), service.LoginRequest{
			Key:       req.Key,
			HWID:      req.HWID,
			IPAddress: ctx.IP(),
			UserAgent: ctx.Get(fiber.HeaderUserAgent),
		},
	)
	if err != nil {
		if service.IsValidationError(err) {
			return loginFailed(ctx, fiber.StatusBadRequest, "invalid request", err.Error())
		}
		return loginFailed(ctx, fiber.StatusInternalServerError, "internal error", "login could not be processed")
	}
	if !res.Success {
		r, ok := rejections[res.Reason]
		if !ok {
			r.status, r.message = fiber.StatusUnauthorized, "login rejected"
		}
		ctx.Status(r.status)
		return ctx.JSON(
			loginResponse{
				Success: false,
				Error:   string(res.Reason),
				Message: r.message,
				Status:  res.Status,
			},
		)
	}
	msg := "login successful"
	if res.FirstUse {
		msg = "login successful, key bound to this device"
	}
	return ctx.JSON(
		loginResponse{
			Success:      true,
			Message:      msg,
			FirstUse:     res.FirstUse,
			Status:       res.Status,
			FirstLoginAt: res.FirstLoginAt,
			ExpiresAt:    res.ExpiresAt,
			Receipt:      res.Receipt,
		},
	)
}
