package svc

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb"
	"github.com/locey/TaskAVS/config"
	"github.com/locey/TaskAVS/contract"
	"github.com/locey/TaskAVS/dao"
	"github.com/locey/TaskAVS/service/auth"
	"github.com/locey/TaskAVS/service/gateway"
	"github.com/locey/TaskAVS/service/reconcile"
)

type ServerCtx struct {
	C       *config.Config
	Dao     *dao.Dao
	Gateway *gateway.Gateway
	Engine  *reconcile.Engine
	Auth    *auth.Authenticator
}

// NewServiceContext opens the database, dials the chain and wires the
// authenticator, gateway and reconciliation engine. Event subscriptions are
// not opened here; app.Platform owns that lifecycle.
func NewServiceContext(c *config.Config) (*ServerCtx, error) {
	logger, err := xzap.SetUp(c.Log)
	if err != nil {
		return nil, errors.Wrap(err, "failed on set up logger")
	}
	xzap.SetLogger(logger)

	db, err := gdb.NewDB(&c.DB)
	if err != nil {
		return nil, err
	}
	store := dao.New(context.Background(), db)

	chainID := c.Chain.ChainID
	if !common.IsHexAddress(c.Chain.AvsContract) {
		return nil, errors.Errorf("invalid avs contract address %q", c.Chain.AvsContract)
	}
	avsContract, err := contract.NewAVS(common.HexToAddress(c.Chain.AvsContract), c.Chain.AbiPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Chain.TxTimeout)
	defer cancel()
	client, err := gateway.Dial(ctx, c.Chain.WsUrl, c.Chain.RpcUrl)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(client, avsContract, c.Chain.AdminPrivateKey, gateway.Options{
		ChainID:        big.NewInt(chainID),
		TxTimeout:      c.Chain.TxTimeout,
		ReceiptTimeout: c.Chain.ReceiptTimeout,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	engine := reconcile.New(store, gw, reconcile.Options{
		ChainName: c.Chain.Name,
		ChainID:   strconv.FormatInt(chainID, 10),
		AssetType: c.Chain.AssetType,
	})
	authenticator := auth.NewAuthenticator(store, auth.NewTokenIssuer(c.Auth.JwtSecret, c.Auth.TokenTTL))

	xzap.Logger().Info("service context ready",
		zap.Int64("chain_id", chainID),
		zap.String("avs_contract", avsContract.Address().Hex()),
		zap.String("admin", gw.From().Hex()))

	return &ServerCtx{
		C:       c,
		Dao:     store,
		Gateway: gw,
		Engine:  engine,
		Auth:    authenticator,
	}, nil
}

func (s *ServerCtx) Close() {
	if s.Gateway != nil {
		s.Gateway.Close()
	}
	if s.Dao != nil {
		if sqlDB, err := s.Dao.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
