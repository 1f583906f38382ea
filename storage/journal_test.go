package storage

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ErbaZZ/wusd-arb/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecords(t *testing.T) {
	ctx := context.Background()
	j := openMemory(t)

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	id, err := j.RecordOpportunity(ctx, 42, &types.ProfitQuote{
		Amount:             huge,
		IntermediateAmount: big.NewInt(2),
		RedeemAmount:       big.NewInt(3),
		Profit:             big.NewInt(-4),
		Iterations:         17,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	var amount, profit string
	require.NoError(t, j.db.QueryRow("SELECT amount, profit FROM opportunities WHERE id = ?", id).Scan(&amount, &profit))
	assert.Equal(t, huge.String(), amount)
	assert.Equal(t, "-4", profit)

	require.NoError(t, j.RecordExecution(ctx, &Execution{
		OpportunityID:  id,
		SwapTx:         common.HexToHash("0x01"),
		ClaimTx:        common.HexToHash("0x02"),
		RealizedProfit: big.NewInt(2_500_000),
		Outcome:        OutcomeSuccess,
	}))
	require.NoError(t, j.RecordExecution(ctx, &Execution{
		OpportunityID:  id,
		SwapTx:         common.HexToHash("0x03"),
		RealizedProfit: big.NewInt(-500_000),
		Outcome:        OutcomeBad,
	}))
	require.NoError(t, j.RecordExecution(ctx, &Execution{
		Outcome: OutcomeFailed,
		Err:     errors.New("execution reverted"),
	}))

	total, err := j.TotalRealizedProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), total.Int64())

	n, err := j.CountExecutions(ctx, OutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var claim *string
	var errText string
	require.NoError(t, j.db.QueryRow("SELECT claim_tx, error FROM executions WHERE outcome = ?", OutcomeFailed).Scan(&claim, &errText))
	assert.Nil(t, claim)
	assert.Equal(t, "execution reverted", errText)
}

func TestJournalDisabled(t *testing.T) {
	ctx := context.Background()

	j, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, j)

	id, err := j.RecordOpportunity(ctx, 1, &types.ProfitQuote{})
	assert.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, j.RecordExecution(ctx, &Execution{Outcome: OutcomeSuccess}))

	total, err := j.TotalRealizedProfit(ctx)
	require.NoError(t, err)
	assert.Zero(t, total.Sign())
	assert.NoError(t, j.Close())
}

func TestJournalOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordExecution(context.Background(), &Execution{
		Outcome:        OutcomeClaim,
		ClaimTx:        common.HexToHash("0x04"),
		RealizedProfit: big.NewInt(7),
	}))
	require.NoError(t, j.Close())

	// reopening keeps existing rows
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	total, err := j.TotalRealizedProfit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), total.Int64())
}
