package query

import (
	"context"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// UserHandler answers user reads.
type UserHandler struct{}

func NewUserHandler() *UserHandler { return &UserHandler{} }

// Register binds the user queries on the bus.
func (h *UserHandler) Register(b *bus.Bus) {
	b.Register(GetMe{}, h.getMe)
	b.Register(GetUser{}, h.getUser)
	b.Register(ListUsers{}, h.listUsers)
}

func (h *UserHandler) getMe(ctx context.Context, rctx *policy.Context, _ any) result.Result[any] {
	if rctx == nil || rctx.User == nil {
		return result.Err[any](apperr.Unauthorized("Token is missing"))
	}
	return h.loadUser(ctx, GetUser{UserID: rctx.User.ID})
}

func (h *UserHandler) getUser(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	return h.loadUser(ctx, msg.(GetUser))
}

func (h *UserHandler) loadUser(ctx context.Context, q GetUser) result.Result[any] {
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	user, err := gw.User().GetOne(ctx, domain.UserFilter{ID: &q.UserID}, true).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](user.Public())
}

func (h *UserHandler) listUsers(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(ListUsers)

	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	page, err := gw.User().GetMany(ctx, domain.UserListFilter{
		Email:    q.Email,
		FromDate: q.FromDate,
		ToDate:   q.ToDate,
	}, q.Page).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}

	out := domain.Page[domain.UserPublic]{
		Items:  make([]domain.UserPublic, 0, len(page.Items)),
		Limit:  page.Limit,
		Offset: page.Offset,
		Total:  page.Total,
	}
	for _, u := range page.Items {
		out.Items = append(out.Items, u.Public())
	}
	return result.Ok[any](out)
}
