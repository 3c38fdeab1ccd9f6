package userstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/kredible/score-middleware/pkg/user"
)

// UserDao is a data access object that maps directly to the 'users' table in PostgreSQL.
type UserDao struct {
	bun.BaseModel       `bun:"table:users,alias:u"`
	ID                  string          `bun:"id,pk,type:uuid"`
	WalletAddress       string          `bun:"wallet_address,unique,notnull,type:varchar(42)"`
	Name                string          `bun:"name,notnull,type:varchar(255)"`
	Email               string          `bun:"email,notnull,type:varchar(255)"`
	Role                string          `bun:"role,notnull,type:varchar(16)"`
	CreditScore         int             `bun:"credit_score,notnull"`
	TotalLent           decimal.Decimal `bun:"total_lent,notnull,type:numeric(38,18)"`
	TotalBorrowed       decimal.Decimal `bun:"total_borrowed,notnull,type:numeric(38,18)"`
	Reputation          int             `bun:"reputation,notnull"`
	Platforms           []string        `bun:"platforms,array"`
	SigningKeyEncrypted *string         `bun:"signing_key_encrypted,type:text"`
	SigningKeyCreatedAt *time.Time      `bun:"signing_key_created_at"`
	CreatedAt           time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
}

// toUserDao converts a user.User to UserDao.
func toUserDao(usr *user.User) *UserDao {
	return &UserDao{
		ID:            usr.ID,
		WalletAddress: usr.WalletAddress,
		Name:          usr.Name,
		Email:         usr.Email,
		Role:          string(usr.Role),
		CreditScore:   usr.CreditScore,
		TotalLent:     usr.TotalLent,
		TotalBorrowed: usr.TotalBorrowed,
		Reputation:    usr.Reputation,
		Platforms:     usr.Platforms,
		CreatedAt:     usr.CreatedAt,
	}
}

// toUser converts a UserDao to user.User.
func toUser(dao *UserDao) *user.User {
	platforms := dao.Platforms
	if platforms == nil {
		platforms = []string{}
	}

	return &user.User{
		ID:            dao.ID,
		WalletAddress: dao.WalletAddress,
		Name:          dao.Name,
		Email:         dao.Email,
		Role:          user.Role(dao.Role),
		CreditScore:   dao.CreditScore,
		TotalLent:     dao.TotalLent,
		TotalBorrowed: dao.TotalBorrowed,
		Reputation:    dao.Reputation,
		Platforms:     platforms,
		CreatedAt:     dao.CreatedAt,
	}
}
