package scoredb

import (
	"context"
	"log"

	mghelper "github.com/kredible/score-middleware/pkg/pgutil/migrations"
	"github.com/kredible/score-middleware/pkg/platformstore"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating api_keys table...")
		if err := mghelper.CreateSchema(ctx, db, &platformstore.APIKeyDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &platformstore.APIKeyDao{}, "platform_id"); err != nil {
			return err
		}
		// Lookup by hash is the hot path for API key verification.
		return mghelper.CreateModelUniqueIndexes(ctx, db, &platformstore.APIKeyDao{}, "secret_hash")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping api_keys table...")
		return mghelper.DropTables(ctx, db, &platformstore.APIKeyDao{})
	})
}
