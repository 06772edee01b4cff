// Package chain wraps the RPC reads and the redeem transaction the
// agent needs: ERC-20 balances for sizing and fill verification, CTF
// payout state and ERC-1155 balances for redemption.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	erc20ABI = `[
		{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
	]`
	ctfABI = `[
		{"constant":true,"inputs":[{"name":"conditionId","type":"bytes32"}],"name":"payoutDenominator","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
	]`
)

// Client handles on-chain reads over a single RPC connection.
type Client struct {
	eth    *ethclient.Client
	erc20  abi.ABI
	ctf    abi.ABI
	logger *zap.Logger
}

// Dial connects to the RPC endpoint and prepares the ABIs.
func Dial(ctx context.Context, rpcURL string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}
	ctf, err := abi.JSON(strings.NewReader(ctfABI))
	if err != nil {
		return nil, fmt.Errorf("parse CTF ABI: %w", err)
	}

	return &Client{
		eth:    eth,
		erc20:  erc20,
		ctf:    ctf,
		logger: logger,
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Eth exposes the underlying RPC client for transaction submission.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// ReadBalance fetches an ERC-20 token balance for an owner.
func (c *Client) ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	result, err := c.call(ctx, c.erc20, token, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Allowance fetches an ERC-20 allowance.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	result, err := c.call(ctx, c.erc20, token, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// PayoutDenominator reads the CTF resolution state for a condition.
// Nonzero means the oracle has reported.
func (c *Client) PayoutDenominator(ctx context.Context, ctf common.Address, conditionID common.Hash) (*big.Int, error) {
	result, err := c.call(ctx, c.ctf, ctf, "payoutDenominator", conditionID)
	if err != nil {
		return nil, fmt.Errorf("read payout denominator: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// BalanceOf1155 reads a CTF outcome-token balance.
func (c *Client) BalanceOf1155(ctx context.Context, ctf, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	result, err := c.call(ctx, c.ctf, ctf, "balanceOf", owner, tokenID)
	if err != nil {
		return nil, fmt.Errorf("read CTF balance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// SuggestGasPrice proxies the RPC gas price estimate.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

func (c *Client) call(ctx context.Context, parsed abi.ABI, to common.Address, fn string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", fn, err)
	}

	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}

	result, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	return result, nil
}
