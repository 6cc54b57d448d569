package service

import (
	"context"
	"time"

	"github.com/emrgen/wikinote/internal/access"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/sirupsen/logrus"
)

var _ identity.UserLookup = (*UserService)(nil)

// NewUserService creates a new UserService.
func NewUserService(gate *access.Gate, users store.UserStore) *UserService {
	return &UserService{gate: gate, users: users}
}

// UserService manages wiki members. New members wait for an admin to approve them.
type UserService struct {
	gate  *access.Gate
	users store.UserStore
}

// Register creates a member waiting for approval.
func (u *UserService) Register(ctx context.Context, name, email string) (*model.User, error) {
	err := validation.Errors{
		"name":  validation.Validate(name, validation.Required, validation.Length(1, 100)),
		"email": validation.Validate(email, validation.Required, is.Email),
	}.Filter()
	if err != nil {
		return nil, err
	}

	user := &model.User{Name: name, Email: email}
	if err := u.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logrus.Infof("user %s registered", email)

	return user, nil
}

// Approve lets a member edit pages.
func (u *UserService) Approve(ctx context.Context, id uint64) (*model.User, error) {
	action := access.ActionAdmin
	if err := u.gate.Authorize(identity.FromContext(ctx), action).Err(action); err != nil {
		return nil, err
	}

	user, err := u.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ApprovedAt == nil {
		now := time.Now()
		user.ApprovedAt = &now
		if err := u.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// List returns approved members or the ones waiting for approval.
func (u *UserService) List(ctx context.Context, approved bool) ([]*model.User, error) {
	action := access.ActionAdmin
	if err := u.gate.Authorize(identity.FromContext(ctx), action).Err(action); err != nil {
		return nil, err
	}

	return u.users.ListUsers(ctx, approved)
}

// Lookup resolves the requester flags of a user id, nil for unknown users.
func (u *UserService) Lookup(ctx context.Context, id uint64) (*identity.Requester, error) {
	user, err := u.users.GetUser(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &identity.Requester{ID: user.ID, Admin: user.Admin, Approved: user.Approved()}, nil
}
