package service

import (
	"context"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	xcommon "github.com/locey/TaskAVS/common"
	"github.com/locey/TaskAVS/service/auth"
	"github.com/locey/TaskAVS/service/svc"
	"github.com/locey/TaskAVS/types/v1"
)

// GetNonce issues a fresh nonce and the message the wallet should sign for it.
func GetNonce(ctx context.Context, svcCtx *svc.ServerCtx, address string) (*types.NonceResp, error) {
	nonce, err := svcCtx.Auth.IssueNonce(ctx, address)
	if err != nil {
		return nil, err
	}
	addr, _ := xcommon.UnifyAddress(address)
	return &types.NonceResp{
		Address: addr,
		Nonce:   nonce,
		Message: auth.LoginMessage(addr, nonce),
	}, nil
}

func UserLogin(ctx context.Context, svcCtx *svc.ServerCtx, req types.LoginReq) (*types.UserLoginResp, error) {
	token, err := svcCtx.Auth.Verify(ctx, req.Address, req.Signature, req.Message)
	if err != nil {
		return nil, err
	}
	return &types.UserLoginResp{AccessToken: token}, nil
}

func BanUser(ctx context.Context, svcCtx *svc.ServerCtx, req types.BanReq) (*avs.Identity, error) {
	return svcCtx.Auth.Ban(ctx, req.Address, req.Reason)
}

func UnbanUser(ctx context.Context, svcCtx *svc.ServerCtx, address string) (*avs.Identity, error) {
	return svcCtx.Auth.Unban(ctx, address)
}
