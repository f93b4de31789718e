package execution

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

func newTestStore(t *testing.T) *state.StateStore {
	t.Helper()
	kv, err := database.OpenLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	st, err := state.New(kv, common.Hash{})
	require.NoError(t, err)
	return st
}

// signedTransfer builds a fully signed Transfer transaction from a fresh
// secp256k1 key pair, recoverable via crypto.RecoverAddress the same way
// mempool.validateSyntax checks it.
func signedTransfer(t *testing.T, nonce uint64, to common.Address, amount *big.Int, price, gasLimit uint64) *txtypes.Transaction {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tx := &txtypes.Transaction{
		TxType:       txtypes.TxTypeTransfer,
		AccountNonce: nonce,
		From:         crypto.PubkeyToAddress(priv.PubKey()),
		Recipient:    &to,
		Amount:       amount,
		Price:        price,
		GasLimit:     gasLimit,
	}
	sig, err := crypto.Sign(tx.SigningHash(), priv)
	require.NoError(t, err)
	tx.Signature = sig
	return tx
}

func seedAccount(t *testing.T, st *state.StateStore, addr common.Address, balance int64, nonce uint64) {
	t.Helper()
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{
		Balance: uint256.NewInt(uint64(balance)),
		Nonce:   nonce,
	}))
}

func TestApplyTransferSuccess(t *testing.T) {
	st := newTestStore(t)
	to := common.Address{0xAA}
	tx := signedTransfer(t, 0, to, big.NewInt(100), 1, 21000)
	seedAccount(t, st, tx.From, 1_000_000, 0)

	receipt, err := apply(tx, st, BlockContext{})
	require.NoError(t, err)
	assert.Equal(t, txtypes.ReceiptSuccess, receipt.Status)
	assert.Equal(t, tx.Hash(), receipt.TxHash)

	sender, ok, err := st.GetAccount(tx.From)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), sender.Nonce)
	assert.Equal(t, uint64(1_000_000-100-21000), sender.Balance.Uint64())

	recipient, ok, err := st.GetAccount(to)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), recipient.Balance.Uint64())
}

func TestApplyTransferNonceMismatch(t *testing.T) {
	st := newTestStore(t)
	to := common.Address{0xAA}
	tx := signedTransfer(t, 5, to, big.NewInt(1), 1, 21000)
	seedAccount(t, st, tx.From, 1_000_000, 0)

	_, err := apply(tx, st, BlockContext{})
	require.Error(t, err)
}

func TestApplyTransferInsufficientFunds(t *testing.T) {
	st := newTestStore(t)
	to := common.Address{0xAA}
	tx := signedTransfer(t, 0, to, big.NewInt(1_000_000), 1, 21000)
	seedAccount(t, st, tx.From, 100, 0)

	_, err := apply(tx, st, BlockContext{})
	require.Error(t, err)
}

func TestApplyUnknownSenderAccount(t *testing.T) {
	st := newTestStore(t)
	to := common.Address{0xAA}
	tx := signedTransfer(t, 0, to, big.NewInt(1), 1, 21000)

	_, err := apply(tx, st, BlockContext{})
	require.Error(t, err)
}
