package postgres

import (
	"context"
	"database/sql"
	"errors"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/uptrace/bun"
)

type postgresUserStore struct {
	db bun.IDB
}

// NewPostgresUserStore creates a UserStore backed by bun.
func NewPostgresUserStore(db bun.IDB) store.UserStore {
	return &postgresUserStore{db: db}
}

func (r *postgresUserStore) FindAll(ctx context.Context) ([]types.User, error) {
	users := make([]types.User, 0)
	err := r.db.NewSelect().
		Model(&users).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *postgresUserStore) FindByID(ctx context.Context, id int64) (*types.User, error) {
	user := new(types.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // user not found
		}
		return nil, err
	}
	return user, nil
}

func (r *postgresUserStore) Insert(ctx context.Context, input types.UserInput) (*types.User, error) {
	user := &types.User{Name: input.Name, Email: input.Email}
	_, err := r.db.NewInsert().
		Model(user).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *postgresUserStore) Update(ctx context.Context, id int64, input types.UserInput) (*types.User, error) {
	user := new(types.User)
	err := r.db.NewUpdate().
		Model(user).
		Set("name = ?", input.Name).
		Set("email = ?", input.Email).
		Set("updated_at = now()").
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *postgresUserStore) Remove(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.NewDelete().
		Model((*types.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *postgresUserStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.UserStore) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &postgresUserStore{db: tx})
	})
}
