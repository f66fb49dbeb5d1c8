package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"loanchain-backend/internal/config"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// loanRegistryABI is the three-function surface of the loan registry contract.
const loanRegistryABI = `[
  {"type":"function","name":"createLoan","stateMutability":"nonpayable","inputs":[{"name":"classId","type":"uint256"},{"name":"nonceId","type":"uint256"},{"name":"url","type":"string"}],"outputs":[]},
  {"type":"function","name":"setStatus","stateMutability":"nonpayable","inputs":[{"name":"classId","type":"uint256"},{"name":"nonceId","type":"uint256"},{"name":"active","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getLoan","stateMutability":"view","inputs":[{"name":"classId","type":"uint256"},{"name":"nonceId","type":"uint256"}],"outputs":[{"name":"url","type":"string"},{"name":"active","type":"bool"}]}
]`

// Contract is the Ethereum-backed Client. The admin signer is resolved once
// at startup from the deployment artifact and the configured key list.
type Contract struct {
	client         *ethclient.Client
	bound          *bind.BoundContract
	opts           *bind.TransactOpts
	address        common.Address
	confirmTimeout time.Duration
}

// Dial connects to the JSON-RPC provider, loads the deployment artifact and
// binds the contract with the admin signer.
func Dial(ctx context.Context, cfg *config.Config) (*Contract, error) {
	art, err := LoadArtifact(cfg.ContractArtifactPath)
	if err != nil {
		return nil, err
	}
	key, err := AdminKey(cfg.PrivateKeys, art.Admin)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("dial provider %s: %w", cfg.ProviderURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(loanRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}
	address := common.HexToAddress(art.Address)

	return &Contract{
		client:         client,
		bound:          bind.NewBoundContract(address, parsed, client, client, client),
		opts:           opts,
		address:        address,
		confirmTimeout: cfg.ConfirmTimeout,
	}, nil
}

// Address returns the bound contract address.
func (c *Contract) Address() string {
	return c.address.Hex()
}

// CreateLoan submits a loan registration transaction.
func (c *Contract) CreateLoan(ctx context.Context, classID, nonceID uint64, url string) (Tx, error) {
	return c.transact(ctx, "createLoan", new(big.Int).SetUint64(classID), new(big.Int).SetUint64(nonceID), url)
}

// SetStatus submits a status-update transaction.
func (c *Contract) SetStatus(ctx context.Context, classID, nonceID uint64, active bool) (Tx, error) {
	return c.transact(ctx, "setStatus", new(big.Int).SetUint64(classID), new(big.Int).SetUint64(nonceID), active)
}

// GetLoan reads the on-chain state of a loan.
func (c *Contract) GetLoan(ctx context.Context, classID, nonceID uint64) (LoanState, error) {
	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getLoan",
		new(big.Int).SetUint64(classID), new(big.Int).SetUint64(nonceID))
	if err != nil {
		return LoanState{}, err
	}
	url, _ := out[0].(string)
	active, _ := out[1].(bool)
	return LoanState{URL: url, Active: active}, nil
}

func (c *Contract) transact(ctx context.Context, method string, args ...interface{}) (Tx, error) {
	opts := *c.opts
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, method, args...)
	if err != nil {
		return nil, err
	}
	return &ethTx{tx: tx, client: c.client, timeout: c.confirmTimeout}, nil
}

type ethTx struct {
	tx      *types.Transaction
	client  *ethclient.Client
	timeout time.Duration
}

func (t *ethTx) Hash() string {
	return t.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined, bounded by the configured
// confirmation timeout. A mined-but-reverted transaction is an error.
func (t *ethTx) Wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, t.client, t.tx)
	if err != nil {
		return fmt.Errorf("wait for tx %s: %w", t.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("tx %s reverted", t.Hash())
	}
	return nil
}
