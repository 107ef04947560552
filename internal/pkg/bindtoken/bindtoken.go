package bindtoken

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/promark/verify-api/internal/domain"
)

// Prefix identifies binding tokens in posted evidence.
const Prefix = "PRM"

// Derive builds a human-postable binding token from a social handle and a
// wallet address: PRM-<HANDLE>-<TAIL4>-<NNNN>. The 4-digit suffix is drawn
// fresh on every call, which is what makes each issued token single-use and
// unguessable from public handle/wallet data alone.
func Derive(handle, walletAddress string) (string, error) {
	if strings.TrimSpace(handle) == "" {
		return "", fmt.Errorf("handle required to derive binding token: %w", domain.ErrMissingPrecondition)
	}
	if strings.TrimSpace(walletAddress) == "" {
		return "", fmt.Errorf("wallet address required to derive binding token: %w", domain.ErrMissingPrecondition)
	}

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate token suffix: %w", err)
	}

	return fmt.Sprintf("%s-%s-%s-%04d", Prefix, NormalizeHandle(handle), walletTail(walletAddress), n.Int64()), nil
}

// NormalizeHandle strips one leading "@" and upper-cases the handle for the
// embedded token segment. The user-facing handle keeps its original casing.
func NormalizeHandle(handle string) string {
	return strings.ToUpper(strings.TrimPrefix(handle, "@"))
}

func walletTail(addr string) string {
	if len(addr) > 4 {
		addr = addr[len(addr)-4:]
	}
	return strings.ToUpper(addr)
}
