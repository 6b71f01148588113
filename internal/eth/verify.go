// Package eth verifies Ethereum personal_sign signatures.
package eth

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
)

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

// DecodeSignature decodes a hex signature with or without the 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.Wrap(core.ErrMalformedSignature, err.Error())
	}
	if len(sig) != SignatureLength {
		return nil, errors.Wrapf(core.ErrMalformedSignature, "signature must be %d bytes", SignatureLength)
	}
	return sig, nil
}

// RecoverAddress returns the address whose key produced signature over the
// personal_sign digest of message.
func RecoverAddress(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, errors.Wrapf(core.ErrMalformedSignature, "signature must be %d bytes", SignatureLength)
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)

	// Wallets emit V as 27/28, go-ethereum expects 0/1
	v := sig[crypto.RecoveryIDOffset]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, errors.Wrapf(core.ErrMalformedSignature, "invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}
	sig[crypto.RecoveryIDOffset] = v

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether signature over message was produced by claimed.
// Malformed signatures return ErrMalformedSignature. A well-formed signature
// that recovers to another key, or does not recover at all, yields false.
func Verify(message, signature []byte, claimed core.Address) (bool, error) {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		if errors.Is(err, core.ErrMalformedSignature) {
			return false, err
		}
		return false, nil
	}
	return core.AddressFromCommon(recovered) == claimed, nil
}

// SignText signs message with personal_sign framing, the way wallets do.
func SignText(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// KeyAddress returns the canonical address of key.
func KeyAddress(key *ecdsa.PrivateKey) core.Address {
	return core.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey))
}
