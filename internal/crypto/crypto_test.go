package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known dev chain account #0.
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLoadKey_Raw(t *testing.T) {
	pk, err := LoadKey(KeyConfig{RawPrivateKey: devKey})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), ethcrypto.PubkeyToAddress(pk.PublicKey))

	_, err = LoadKey(KeyConfig{RawPrivateKey: "0xzz"})
	assert.Error(t, err)

	_, err = LoadKey(KeyConfig{})
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestEncryptedKeyFile_RoundTrip(t *testing.T) {
	blob, err := EncryptKey(devKey, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	pk, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], common.Bytes2Hex(ethcrypto.FromECDSA(pk)))

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"})
	assert.Error(t, err)

	_, err = EncryptKey(devKey, "")
	assert.Error(t, err)
}

func TestSigner_SignTx(t *testing.T) {
	pk, err := LoadKey(KeyConfig{RawPrivateKey: devKey})
	require.NoError(t, err)
	s := NewSigner(pk, 31337)

	to := common.HexToAddress("0x1")
	tx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(1), nil)
	signed, err := s.SignTx(tx)
	require.NoError(t, err)

	from, err := s.Sender(signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
	assert.Equal(t, int64(31337), s.ChainID().Int64())
}
