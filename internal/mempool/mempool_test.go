package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

// fakeState is a minimal StateReader backed by plain maps — a stand-in for
// the account facts StateStore would otherwise serve, since the mempool
// only ever reads nonce/balance through this narrow interface.
type fakeState struct {
	nonces   map[common.Address]uint64
	balances map[common.Address]*uint256.Int
}

func newFakeState() *fakeState {
	return &fakeState{
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (f *fakeState) GetEvmNonce(addr common.Address) (uint64, error) {
	return f.nonces[addr], nil
}

func (f *fakeState) GetEvmBalance(addr common.Address) (*uint256.Int, error) {
	if b, ok := f.balances[addr]; ok {
		return b, nil
	}
	return uint256.NewInt(0), nil
}

func testConfig() config.MempoolConfig {
	return config.MempoolConfig{
		MinGasPrice:        1,
		MaxMemoryBytes:     1 << 20,
		MaxAge:             time.Hour,
		SweepInterval:      time.Hour,
		MaxQueuedPerSender: 64,
	}
}

func newSignedTx(t *testing.T, nonce uint64, price uint64, gasLimit uint64, amount int64) (*txtypes.Transaction, common.Address) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	to := common.Address{0xAB}
	tx := &txtypes.Transaction{
		TxType:       txtypes.TxTypeTransfer,
		AccountNonce: nonce,
		From:         from,
		Recipient:    &to,
		Amount:       big.NewInt(amount),
		Price:        price,
		GasLimit:     gasLimit,
	}
	sig, err := crypto.Sign(tx.SigningHash(), priv)
	require.NoError(t, err)
	tx.Signature = sig
	return tx, from
}

func newMempool(t *testing.T, st *fakeState) *Mempool {
	t.Helper()
	mp := New(testConfig(), st)
	t.Cleanup(mp.Stop)
	return mp
}

func TestAddAdmitsValidTransaction(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 10, 21000, 1)
	st.balances[from] = uint256.NewInt(1_000_000)

	mp := newMempool(t, st)
	hash, err := mp.Add(tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)
	assert.Equal(t, 1, mp.Size())
}

func TestAddRejectsNonceBelowState(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 10, 21000, 1)
	st.balances[from] = uint256.NewInt(1_000_000)
	st.nonces[from] = 5

	mp := newMempool(t, st)
	_, err := mp.Add(tx)
	require.Error(t, err)
	assert.Equal(t, 0, mp.Size())
}

func TestAddRejectsInsufficientBalance(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 10, 21000, 1_000_000)
	st.balances[from] = uint256.NewInt(1)

	mp := newMempool(t, st)
	_, err := mp.Add(tx)
	require.Error(t, err)
}

func TestAddRejectsBelowMinGasPrice(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 0, 21000, 1)
	st.balances[from] = uint256.NewInt(1_000_000)

	mp := newMempool(t, st)
	_, err := mp.Add(tx)
	require.Error(t, err)
}

func TestAddRejectsDuplicateNonce(t *testing.T) {
	st := newFakeState()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	st.balances[from] = uint256.NewInt(1_000_000)

	mp := newMempool(t, st)
	tx1 := newSignedTxFrom(t, priv, 0, 10)
	_, err = mp.Add(tx1)
	require.NoError(t, err)

	tx2 := newSignedTxFrom(t, priv, 0, 20)
	_, err = mp.Add(tx2)
	require.Error(t, err)
}

func TestAddIsIdempotentForSameHash(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 10, 21000, 1)
	st.balances[from] = uint256.NewInt(1_000_000)

	mp := newMempool(t, st)
	h1, err := mp.Add(tx)
	require.NoError(t, err)
	h2, err := mp.Add(tx)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, mp.Size())
}

// newSignedTxFrom builds a second transaction signed by the same key as an
// earlier fixture, so both land in one sender's queue.
func newSignedTxFrom(t *testing.T, priv *btcec.PrivateKey, nonce uint64, price uint64) *txtypes.Transaction {
	t.Helper()
	to := common.Address{0xAB}
	tx := &txtypes.Transaction{
		TxType:       txtypes.TxTypeTransfer,
		AccountNonce: nonce,
		From:         crypto.PubkeyToAddress(priv.PubKey()),
		Recipient:    &to,
		Amount:       big.NewInt(1),
		Price:        price,
		GasLimit:     21000,
	}
	sig, err := crypto.Sign(tx.SigningHash(), priv)
	require.NoError(t, err)
	tx.Signature = sig
	return tx
}

func TestPullForBlockStopsAtNonceGap(t *testing.T) {
	st := newFakeState()
	mp := newMempool(t, st)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	st.balances[from] = uint256.NewInt(10_000_000)

	tx0 := newSignedTxFrom(t, priv, 0, 5)
	_, err = mp.Add(tx0)
	require.NoError(t, err)

	// nonce 2 leaves a gap at nonce 1, so it must stay queued, not pending.
	tx2 := newSignedTxFrom(t, priv, 2, 5)
	_, err = mp.Add(tx2)
	require.NoError(t, err)

	batch := mp.PullForBlock(10, 1_000_000)
	require.Len(t, batch, 1, "nonce 2 is gapped behind missing nonce 1 and must not be pulled")
	assert.Equal(t, tx0.Hash(), batch[0].Hash())
}

func TestPullForBlockPicksHigherPrioritySenderFirst(t *testing.T) {
	st := newFakeState()
	mp := newMempool(t, st)

	low, fromLow := newSignedTx(t, 0, 1, 21000, 1)
	st.balances[fromLow] = uint256.NewInt(10_000_000)
	_, err := mp.Add(low)
	require.NoError(t, err)

	high, fromHigh := newSignedTx(t, 0, 100, 21000, 1)
	st.balances[fromHigh] = uint256.NewInt(10_000_000)
	_, err = mp.Add(high)
	require.NoError(t, err)

	batch := mp.PullForBlock(1, 1_000_000)
	require.Len(t, batch, 1)
	assert.Equal(t, high.Hash(), batch[0].Hash())
}

func TestRemoveAndMarkExecutedDropTransaction(t *testing.T) {
	st := newFakeState()
	tx, from := newSignedTx(t, 0, 10, 21000, 1)
	st.balances[from] = uint256.NewInt(1_000_000)

	mp := newMempool(t, st)
	hash, err := mp.Add(tx)
	require.NoError(t, err)
	require.Equal(t, 1, mp.Size())

	mp.MarkExecuted(hash)
	assert.Equal(t, 0, mp.Size())
}

func TestGasPriceStatsOverPool(t *testing.T) {
	st := newFakeState()
	mp := newMempool(t, st)

	tx1, from1 := newSignedTx(t, 0, 10, 21000, 1)
	st.balances[from1] = uint256.NewInt(1_000_000)
	_, err := mp.Add(tx1)
	require.NoError(t, err)

	tx2, from2 := newSignedTx(t, 0, 30, 21000, 1)
	st.balances[from2] = uint256.NewInt(1_000_000)
	_, err = mp.Add(tx2)
	require.NoError(t, err)

	tx3, from3 := newSignedTx(t, 0, 20, 21000, 1)
	st.balances[from3] = uint256.NewInt(1_000_000)
	_, err = mp.Add(tx3)
	require.NoError(t, err)

	min, median, max := mp.GasPriceStats()
	assert.Equal(t, uint64(10), min)
	assert.Equal(t, uint64(20), median)
	assert.Equal(t, uint64(30), max)
}
