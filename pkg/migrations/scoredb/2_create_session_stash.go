package scoredb

import (
	"context"
	"log"

	mghelper "github.com/kredible/score-middleware/pkg/pgutil/migrations"
	"github.com/kredible/score-middleware/pkg/sessionstore"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating session_stash table...")
		return mghelper.CreateSchema(ctx, db, &sessionstore.StashDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping session_stash table...")
		return mghelper.DropTables(ctx, db, &sessionstore.StashDao{})
	})
}
