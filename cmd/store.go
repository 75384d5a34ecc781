package cmd

import (
	"context"

	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb"
	"github.com/locey/TaskAVS/config"
	"github.com/locey/TaskAVS/dao"
)

// openStore sets up logging and the database without dialing the chain.
func openStore(c *config.Config) (*dao.Dao, func(), error) {
	logger, err := xzap.SetUp(c.Log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed on set up logger")
	}
	xzap.SetLogger(logger)

	db, err := gdb.NewDB(&c.DB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = logger.Sync()
	}
	return dao.New(context.Background(), db), closeFn, nil
}
