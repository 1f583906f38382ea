package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ErbaZZ/wusd-arb/types"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	block_number  INTEGER NOT NULL,
	amount        TEXT NOT NULL,
	intermediate  TEXT NOT NULL,
	redeem        TEXT NOT NULL,
	profit        TEXT NOT NULL,
	iterations    INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	opportunity_id  INTEGER REFERENCES opportunities(id),
	swap_tx         TEXT,
	claim_tx        TEXT,
	realized_profit TEXT,
	outcome         TEXT NOT NULL,
	error           TEXT,
	created_at      INTEGER NOT NULL
);
`

// Outcome of an execution
const (
	OutcomeSuccess = "success"
	OutcomeBad     = "bad"
	OutcomeFailed  = "failed"
	OutcomeClaim   = "claim"
)

// Execution is one journaled attempt
type Execution struct {
	OpportunityID  int64
	SwapTx         common.Hash
	ClaimTx        common.Hash
	RealizedProfit *big.Int
	Outcome        string
	Err            error
}

// Journal records opportunities and executions in sqlite. A nil *Journal is
// valid and records nothing.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. An empty path disables the
// journal and returns nil.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// sqlite allows one writer; an in-memory database also lives per connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// RecordOpportunity stores a quote and returns its id
func (j *Journal) RecordOpportunity(ctx context.Context, blockNumber uint64, q *types.ProfitQuote) (int64, error) {
	if j == nil {
		return 0, nil
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO opportunities (block_number, amount, intermediate, redeem, profit, iterations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		blockNumber, q.Amount.String(), q.IntermediateAmount.String(), q.RedeemAmount.String(),
		q.Profit.String(), q.Iterations, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record opportunity: %w", err)
	}
	return res.LastInsertId()
}

// RecordExecution stores the outcome of an execution
func (j *Journal) RecordExecution(ctx context.Context, e *Execution) error {
	if j == nil {
		return nil
	}

	var (
		opportunity sql.NullInt64
		swapTx      sql.NullString
		claimTx     sql.NullString
		realized    sql.NullString
		errText     sql.NullString
	)
	if e.OpportunityID > 0 {
		opportunity = sql.NullInt64{Int64: e.OpportunityID, Valid: true}
	}
	if e.SwapTx != (common.Hash{}) {
		swapTx = sql.NullString{String: e.SwapTx.Hex(), Valid: true}
	}
	if e.ClaimTx != (common.Hash{}) {
		claimTx = sql.NullString{String: e.ClaimTx.Hex(), Valid: true}
	}
	if e.RealizedProfit != nil {
		realized = sql.NullString{String: e.RealizedProfit.String(), Valid: true}
	}
	if e.Err != nil {
		errText = sql.NullString{String: e.Err.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO executions (opportunity_id, swap_tx, claim_tx, realized_profit, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		opportunity, swapTx, claimTx, realized, e.Outcome, errText, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// TotalRealizedProfit sums realized profit over every journaled execution
func (j *Journal) TotalRealizedProfit(ctx context.Context) (*big.Int, error) {
	total := new(big.Int)
	if j == nil {
		return total, nil
	}

	rows, err := j.db.QueryContext(ctx, "SELECT realized_profit FROM executions WHERE realized_profit IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid realized profit %q", s)
		}
		total.Add(total, v)
	}
	return total, rows.Err()
}

// CountExecutions returns the number of executions with the given outcome
func (j *Journal) CountExecutions(ctx context.Context, outcome string) (int, error) {
	if j == nil {
		return 0, nil
	}
	var n int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions WHERE outcome = ?", outcome).Scan(&n)
	return n, err
}
