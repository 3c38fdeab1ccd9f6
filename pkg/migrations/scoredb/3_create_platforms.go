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
		log.Println("creating platforms table...")
		if err := mghelper.CreateSchema(ctx, db, &platformstore.PlatformDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &platformstore.PlatformDao{}, "user_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping platforms table...")
		return mghelper.DropTables(ctx, db, &platformstore.PlatformDao{})
	})
}
