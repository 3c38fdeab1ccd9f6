package scoredb

import (
	"context"
	"log"

	mghelper "github.com/kredible/score-middleware/pkg/pgutil/migrations"
	"github.com/kredible/score-middleware/pkg/userstore"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating users table...")
		if err := mghelper.CreateSchema(ctx, db, &userstore.UserDao{}); err != nil {
			return err
		}
		// The unique index is what surfaces concurrent registrations for the
		// same address as a conflict instead of a duplicate row.
		return mghelper.CreateModelUniqueIndexes(ctx, db, &userstore.UserDao{}, "wallet_address")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping users table...")
		return mghelper.DropTables(ctx, db, &userstore.UserDao{})
	})
}
