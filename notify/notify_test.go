package notify

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErbaZZ/wusd-arb/types"
	"github.com/ErbaZZ/wusd-arb/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLineNotify(t *testing.T) {
	var (
		gotAuth    string
		gotType    string
		gotMessage string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		assert.NoError(t, r.ParseForm())
		gotMessage = r.PostForm.Get("message")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewLine(server.URL, "secret", time.Second, zaptest.NewLogger(t))
	require.NoError(t, n.Notify(context.Background(), "SUCCESS:\n1.0000 USDC (0.20%)"))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "SUCCESS:\n1.0000 USDC (0.20%)", gotMessage)
}

func TestLineNotifyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"message":"Invalid access token"}`))
	}))
	defer server.Close()

	n := NewLine(server.URL, "bad", time.Second, zaptest.NewLogger(t))
	err := n.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid access token")
}

func TestLineNotifyCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewLine(server.URL, "secret", time.Second, zaptest.NewLogger(t))
	assert.Error(t, n.Notify(ctx, "hello"))
}

func TestNewWithoutTokenIsNop(t *testing.T) {
	n := New("http://127.0.0.1:1", "", time.Second, zaptest.NewLogger(t))
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "dropped"))

	assert.IsType(t, &Line{}, New("http://127.0.0.1:1", "token", time.Second, zaptest.NewLogger(t)))
}

func TestMessages(t *testing.T) {
	f := Formatter{Symbol: "USDC", Decimals: 6}

	quote := &types.ProfitQuote{
		Amount:       big.NewInt(12_244_224_547),
		RedeemAmount: big.NewInt(12_244_557_880),
		Profit:       big.NewInt(333_333),
	}
	assert.Equal(t, "\n12244.2245 -> 12244.5579 USDC\nProfit: 0.3333 USDC", f.Opportunity(quote))

	realized := &utils.RealizedProfit{
		Profit:  big.NewInt(2_500_000),
		Percent: decimal.New(25, -2),
	}
	assert.Equal(t, "SUCCESS:\n2.5000 USDC (0.25%)\nBalance: 1002.5000 USDC",
		f.Success(realized, big.NewInt(1_002_500_000)))

	assert.Equal(t, "BAD:\nBalance: 999.0000 USDC", f.Bad(big.NewInt(999_000_000)))
	assert.Equal(t, "FAILED:\nboom", f.Failed(errors.New("boom")))
}
