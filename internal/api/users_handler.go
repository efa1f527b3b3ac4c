package api

import (
	"context"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/labstack/echo/v4"
	"net/http"
	"strconv"
)

// UserService is the subset of service.Users the handlers need.
type UserService interface {
	List(ctx context.Context) ([]types.User, error)
	Get(ctx context.Context, id int64) (*types.User, error)
	Create(ctx context.Context, input types.UserInput) (*types.User, error)
	Update(ctx context.Context, id int64, input types.UserInput) (*types.User, error)
	Delete(ctx context.Context, id int64) error
}

type UsersHandler struct {
	users UserService
}

func NewUsersHandler(users UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UsersHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UsersHandler) Create(c echo.Context) error {
	input, err := bindUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UsersHandler) Update(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	input, err := bindUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.Update(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UsersHandler) Delete(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// userID treats a malformed id the same as a missing user.
func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, custom_errors.NewNotFound("User not found")
	}
	return id, nil
}

func bindUser(c echo.Context) (types.UserInput, error) {
	var input types.UserInput
	if err := c.Bind(&input); err != nil {
		return input, custom_errors.NewValidation("invalid request body")
	}
	return input, nil
}
