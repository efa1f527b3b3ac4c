// Package service holds the user mutation workflows and binds each committed
// mutation to the background jobs it triggers.
package service

import (
	"context"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/types"
	"strings"
	"time"
)

const (
	msgInvalidUser  = "name and email are required"
	msgUserNotFound = "User not found"
)

type Users struct {
	store    store.UserStore
	producer *Producer
	now      func() time.Time
}

func NewUsers(s store.UserStore, producer *Producer) *Users {
	return &Users{
		store:    s,
		producer: producer,
		now:      time.Now,
	}
}

func (s *Users) List(ctx context.Context) ([]types.User, error) {
	users, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, custom_errors.NewInternal("list users", err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

func (s *Users) Get(ctx context.Context, id int64) (*types.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, custom_errors.NewInternal("find user", err)
	}
	if user == nil {
		return nil, custom_errors.NewNotFound(msgUserNotFound)
	}
	return user, nil
}

func (s *Users) Create(ctx context.Context, input types.UserInput) (*types.User, error) {
	input, err := validate(input)
	if err != nil {
		return nil, err
	}

	var user *types.User
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx store.UserStore) error {
		var err error
		user, err = tx.Insert(ctx, input)
		return err
	})
	if err != nil {
		return nil, custom_errors.NewInternal("create user", err)
	}

	s.producer.Enqueue(ctx, types.CategoryEmail, types.JobWelcomeEmail, types.WelcomeEmailPayload{
		Name:  user.Name,
		Email: user.Email,
		Type:  types.JobWelcomeEmail,
	})
	s.producer.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, types.AuditLogPayload{
		Action:      types.AuditActionCreate,
		UserID:      user.ID,
		Payload:     &types.UserInput{Name: user.Name, Email: user.Email},
		PerformedAt: s.timestamp(),
	})
	return user, nil
}

func (s *Users) Update(ctx context.Context, id int64, input types.UserInput) (*types.User, error) {
	input, err := validate(input)
	if err != nil {
		return nil, err
	}

	var user *types.User
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx store.UserStore) error {
		var err error
		user, err = tx.Update(ctx, id, input)
		return err
	})
	if err != nil {
		return nil, custom_errors.NewInternal("update user", err)
	}
	if user == nil {
		return nil, custom_errors.NewNotFound(msgUserNotFound)
	}

	s.producer.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, types.AuditLogPayload{
		Action:      types.AuditActionUpdate,
		UserID:      user.ID,
		Payload:     &types.UserInput{Name: user.Name, Email: user.Email},
		PerformedAt: s.timestamp(),
	})
	return user, nil
}

func (s *Users) Delete(ctx context.Context, id int64) error {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return custom_errors.NewInternal("delete user", err)
	}
	if !removed {
		return custom_errors.NewNotFound(msgUserNotFound)
	}

	at := s.timestamp()
	s.producer.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, types.AuditLogPayload{
		Action:      types.AuditActionDelete,
		UserID:      id,
		PerformedAt: at,
	})
	s.producer.Enqueue(ctx, types.CategoryReport, types.JobDeletionReport, types.DeletionReportPayload{
		UserID:    id,
		DeletedAt: at,
	})
	return nil
}

func (s *Users) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func validate(input types.UserInput) (types.UserInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if input.Name == "" || input.Email == "" {
		return input, custom_errors.NewValidation(msgInvalidUser)
	}
	return input, nil
}
