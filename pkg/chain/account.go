package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const redeemABI = `[{
	"inputs": [
		{"name": "collateralToken", "type": "address"},
		{"name": "parentCollectionId", "type": "bytes32"},
		{"name": "conditionId", "type": "bytes32"},
		{"name": "indexSets", "type": "uint256[]"}
	],
	"name": "redeemPositions",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// redeemGasLimit is a generous estimate; redeemPositions on the CTF
// contracts in use stays well under it.
const redeemGasLimit = uint64(200000)

// Account wraps a signing key and submits redeem transactions.
type Account struct {
	client     *Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	redeem     abi.ABI
	logger     *zap.Logger
}

// NewAccount parses the private key and prepares the redeem ABI.
func NewAccount(client *Client, privateKeyHex string, chainID int64, logger *zap.Logger) (*Account, error) {
	if client == nil {
		return nil, errors.New("chain client cannot be nil")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	parsed, err := abi.JSON(strings.NewReader(redeemABI))
	if err != nil {
		return nil, fmt.Errorf("parse redeem ABI: %w", err)
	}

	return &Account{
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		chainID:    big.NewInt(chainID),
		redeem:     parsed,
		logger:     logger,
	}, nil
}

// Address returns the EOA address derived from the signing key.
func (a *Account) Address() common.Address {
	return a.address
}

// RedeemPositions calls the CTF contract's redeemPositions and waits
// for the transaction to be mined.
func (a *Account) RedeemPositions(ctx context.Context, ctf, collateral common.Address, conditionID common.Hash, indexSets []*big.Int) error {
	// Parent collection is always the zero hash for these venues.
	data, err := a.redeem.Pack("redeemPositions", collateral, common.Hash{}, conditionID, indexSets)
	if err != nil {
		return fmt.Errorf("pack call data: %w", err)
	}

	eth := a.client.Eth()

	nonce, err := eth.PendingNonceAt(ctx, a.address)
	if err != nil {
		return fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, ctf, big.NewInt(0), redeemGasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.privateKey)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}

	if err := eth.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	a.logger.Info("redeem-tx-sent",
		zap.String("tx-hash", signedTx.Hash().Hex()),
		zap.String("condition-id", conditionID.Hex()))

	receipt, err := bind.WaitMined(ctx, eth, signedTx)
	if err != nil {
		return fmt.Errorf("wait for tx: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.New("redeem transaction reverted")
	}

	a.logger.Info("redeem-confirmed",
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("gas-used", receipt.GasUsed))
	return nil
}
