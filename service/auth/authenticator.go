// Package auth implements the wallet login handshake: a one time nonce per
// address, EIP-191 signature recovery against it, and HS256 session tokens.
//
// The signed message must embed the identity's current nonce; LoginMessage
// builds such a message and Verify rejects any message that does not contain
// the current nonce. Because the nonce is rotated on every successful
// verification, a replayed (message, signature) pair fails.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	xcommon "github.com/locey/TaskAVS/common"
	"github.com/locey/TaskAVS/dao"
	"github.com/locey/TaskAVS/service/metrics"
)

// NonceBytes gives 256 bits of entropy, hex encoded to 64 chars.
const NonceBytes = 32

type IdentityStore interface {
	UpsertIdentityNonce(ctx context.Context, address, nonce string) error
	GetIdentityByAddress(ctx context.Context, address string) (*avs.Identity, error)
	RotateIdentityNonce(ctx context.Context, id, current, next string, at time.Time) (bool, error)
	SetIdentityBan(ctx context.Context, address string, banned bool, reason string) (*avs.Identity, error)
}

type Authenticator struct {
	store  IdentityStore
	tokens *TokenIssuer
	now    func() time.Time
}

func NewAuthenticator(store IdentityStore, tokens *TokenIssuer) *Authenticator {
	return &Authenticator{store: store, tokens: tokens, now: time.Now}
}

func (a *Authenticator) Tokens() *TokenIssuer {
	return a.tokens
}

// LoginMessage is the text a wallet is asked to personal_sign.
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to TaskAVS\n\nWallet: %s\nNonce: %s", strings.ToLower(address), nonce)
}

func newNonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed on read random nonce")
	}
	return hex.EncodeToString(buf), nil
}

// IssueNonce creates the identity on first request and replaces its nonce.
func (a *Authenticator) IssueNonce(ctx context.Context, address string) (string, error) {
	addr, err := xcommon.UnifyAddress(address)
	if err != nil {
		return "", err
	}
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	if err := a.store.UpsertIdentityNonce(ctx, addr, nonce); err != nil {
		return "", errors.Wrap(err, "failed on upsert identity nonce")
	}
	return nonce, nil
}

// RecoverAddress returns the signer of an EIP-191 personal message.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return "", errors.Wrap(err, "malformed signature")
	}
	if len(sig) != crypto.SignatureLength {
		return "", errors.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	// wallets produce v in {27, 28}; SigToPub wants {0, 1}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", errors.Wrap(err, "failed on recover signer")
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Verify checks a signed login message and returns a session token.
func (a *Authenticator) Verify(ctx context.Context, address, signature, message string) (string, error) {
	addr, err := xcommon.UnifyAddress(address)
	if err != nil {
		return "", err
	}
	if signature == "" || message == "" {
		return "", errcode.ErrInvalidInput.WithMsg("signature and message are required")
	}

	identity, err := a.store.GetIdentityByAddress(ctx, addr)
	if err != nil {
		if dao.IsNotFound(err) {
			return "", errcode.ErrNotFound.WithMsg("user %s not found", addr)
		}
		return "", errors.Wrap(err, "failed on get identity")
	}

	if identity.IsBanned {
		metrics.Logins.WithLabelValues("banned").Inc()
		reason := identity.BanReason
		if reason == "" {
			reason = "account is banned"
		}
		return "", errcode.ErrForbidden.WithMsg("%s", reason)
	}

	if !strings.Contains(message, identity.Nonce) {
		metrics.Logins.WithLabelValues("stale_nonce").Inc()
		return "", errcode.ErrUnauthorized.WithMsg("message does not carry the current nonce")
	}

	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		metrics.Logins.WithLabelValues("bad_signature").Inc()
		return "", errcode.ErrUnauthorized.Wrap(err, "invalid signature")
	}
	if !xcommon.SameAddress(recovered, addr) {
		metrics.Logins.WithLabelValues("bad_signature").Inc()
		return "", errcode.ErrUnauthorized.WithMsg("invalid signature")
	}

	next, err := newNonce()
	if err != nil {
		return "", err
	}
	rotated, err := a.store.RotateIdentityNonce(ctx, identity.ID, identity.Nonce, next, a.now())
	if err != nil {
		return "", errors.Wrap(err, "failed on rotate nonce")
	}
	if !rotated {
		// a concurrent verification consumed this nonce first
		metrics.Logins.WithLabelValues("stale_nonce").Inc()
		return "", errcode.ErrUnauthorized.WithMsg("nonce already used")
	}

	token, err := a.tokens.Issue(identity.ID, identity.Address)
	if err != nil {
		return "", err
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	xzap.WithContext(ctx).Info("identity authenticated", zap.String("address", identity.Address))
	return token, nil
}

// ParseToken validates a bearer token issued by Verify.
func (a *Authenticator) ParseToken(token string) (*Session, error) {
	return a.tokens.Parse(token)
}

func (a *Authenticator) Ban(ctx context.Context, address, reason string) (*avs.Identity, error) {
	return a.setBan(ctx, address, true, reason)
}

func (a *Authenticator) Unban(ctx context.Context, address string) (*avs.Identity, error) {
	return a.setBan(ctx, address, false, "")
}

func (a *Authenticator) setBan(ctx context.Context, address string, banned bool, reason string) (*avs.Identity, error) {
	addr, err := xcommon.UnifyAddress(address)
	if err != nil {
		return nil, err
	}
	identity, err := a.store.SetIdentityBan(ctx, addr, banned, reason)
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, errcode.ErrNotFound.WithMsg("user %s not found", addr)
		}
		return nil, errors.Wrap(err, "failed on set ban")
	}
	xzap.WithContext(ctx).Info("identity ban updated",
		zap.String("address", addr), zap.Bool("banned", banned), zap.String("reason", reason))
	return identity, nil
}
