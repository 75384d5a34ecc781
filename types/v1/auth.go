package types

type NonceResp struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

type LoginReq struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

type UserLoginResp struct {
	AccessToken string `json:"access_token"`
}

type BanReq struct {
	Address string `json:"address" validate:"required,eth_addr"`
	Reason  string `json:"reason" validate:"max=500"`
}
