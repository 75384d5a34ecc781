package dao

import (
	"context"

	"gorm.io/gorm"
)

type Dao struct {
	ctx context.Context
	DB  *gorm.DB
}

func New(ctx context.Context, db *gorm.DB) *Dao {
	return &Dao{
		ctx: ctx,
		DB:  db,
	}
}
