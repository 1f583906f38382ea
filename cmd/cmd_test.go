package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ErbaZZ/wusd-arb/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestQuoteAccount(t *testing.T) {
	t.Cleanup(func() { quoteWallet = "" })

	tests := []struct {
		name    string
		wallet  string
		key     string
		want    common.Address
		wantErr bool
	}{
		{
			name:   "wallet flag wins",
			wallet: "0x000000000000000000000000000000000000dEaD",
			key:    testKey,
			want:   common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		},
		{
			name: "derived from private key",
			key:  "0x" + testKey,
			want: common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7"),
		},
		{name: "invalid wallet", wallet: "0x1234", wantErr: true},
		{name: "no wallet and no key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quoteWallet = tt.wallet
			got, err := quoteAccount(&config.Config{PrivateKey: tt.key})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.json")
	t.Cleanup(func() {
		cfgFile = ""
		forceInit = false
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})

	rootCmd.SetArgs([]string{"init", "--config", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written config.Config
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, config.DefaultConfig().Strategy, written.Strategy)
	assert.Equal(t, config.DefaultConfig().Network, written.Network)

	rootCmd.SetArgs([]string{"init", "--config", path})
	assert.Error(t, rootCmd.Execute(), "existing file is not overwritten")

	rootCmd.SetArgs([]string{"init", "--config", path, "--force"})
	assert.NoError(t, rootCmd.Execute())
}
