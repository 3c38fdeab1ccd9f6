package platformstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kredible/score-middleware/pkg/platform"
)

// PlatformDao is a data access object that maps directly to the 'platforms'
// table in PostgreSQL.
type PlatformDao struct {
	bun.BaseModel `bun:"table:platforms,alias:p"`
	ID            string    `bun:"id,pk,type:uuid"`
	UserID        string    `bun:"user_id,notnull,type:uuid"`
	Name          string    `bun:"name,notnull,type:varchar(255)"`
	Description   string    `bun:"description,notnull,type:text,default:''"`
	ContactEmail  string    `bun:"contact_email,notnull,type:varchar(255)"`
	Plan          string    `bun:"plan,notnull,type:varchar(16)"`
	Active        bool      `bun:"active,notnull,default:true"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// APIKeyDao is a data access object that maps directly to the 'api_keys'
// table in PostgreSQL.
type APIKeyDao struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`
	ID            string     `bun:"id,pk,type:uuid"`
	PlatformID    string     `bun:"platform_id,notnull,type:uuid"`
	Name          string     `bun:"name,notnull,type:varchar(255)"`
	Prefix        string     `bun:"prefix,notnull,type:varchar(16)"`
	SecretHash    string     `bun:"secret_hash,unique,notnull,type:varchar(64)"`
	UsageCount    int64      `bun:"usage_count,notnull,default:0"`
	LastUsedAt    *time.Time `bun:"last_used_at"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
}

func toPlatformDao(p *platform.Platform) *PlatformDao {
	return &PlatformDao{
		ID:           p.ID,
		UserID:       p.UserID,
		Name:         p.Name,
		Description:  p.Description,
		ContactEmail: p.ContactEmail,
		Plan:         string(p.Plan),
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
	}
}

func toPlatform(dao *PlatformDao) *platform.Platform {
	return &platform.Platform{
		ID:           dao.ID,
		UserID:       dao.UserID,
		Name:         dao.Name,
		Description:  dao.Description,
		ContactEmail: dao.ContactEmail,
		Plan:         platform.Plan(dao.Plan),
		Active:       dao.Active,
		CreatedAt:    dao.CreatedAt,
	}
}

func toAPIKey(dao *APIKeyDao) *platform.APIKey {
	return &platform.APIKey{
		ID:         dao.ID,
		PlatformID: dao.PlatformID,
		Name:       dao.Name,
		Prefix:     dao.Prefix,
		UsageCount: dao.UsageCount,
		LastUsedAt: dao.LastUsedAt,
		CreatedAt:  dao.CreatedAt,
	}
}
