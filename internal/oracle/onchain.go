package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
)

const tokenABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

// OnChainOptions configures an OnChain oracle
type OnChainOptions struct {
	ContractAddress string
	TokenID         string
	// Standard is config.TokenStandardERC1155 or config.TokenStandardERC721
	Standard string
	Logger   *slog.Logger
}

// OnChain reads token ownership straight from the token contract
type OnChain struct {
	caller   ethereum.ContractCaller
	contract common.Address
	tokenID  *big.Int
	standard string
	abi      abi.ABI
	logger   *slog.Logger
	closeFn  func()
}

// NewOnChain creates an oracle that queries the contract through caller
func NewOnChain(caller ethereum.ContractCaller, opts OnChainOptions) (*OnChain, error) {
	if caller == nil {
		return nil, fmt.Errorf("on-chain oracle requires a contract caller")
	}
	if !common.IsHexAddress(opts.ContractAddress) {
		return nil, fmt.Errorf("%w: contract %q", ErrInvalidAddress, opts.ContractAddress)
	}

	tokenID, ok := new(big.Int).SetString(strings.TrimSpace(opts.TokenID), 0)
	if !ok || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", opts.TokenID)
	}

	standard := strings.ToLower(opts.Standard)
	if standard == "" {
		standard = config.TokenStandardERC1155
	}
	if standard != config.TokenStandardERC1155 && standard != config.TokenStandardERC721 {
		return nil, fmt.Errorf("unsupported token standard %q", opts.Standard)
	}

	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("parsing token abi: %w", err)
	}

	return &OnChain{
		caller:   caller,
		contract: common.HexToAddress(opts.ContractAddress),
		tokenID:  tokenID,
		standard: standard,
		abi:      parsed,
		logger:   infrastructure.WithComponent(opts.Logger, "oracle.onchain"),
	}, nil
}

// DialOnChain connects to rpcURL and creates an OnChain oracle that owns the connection
func DialOnChain(ctx context.Context, rpcURL string, opts OnChainOptions) (*OnChain, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}

	o, err := NewOnChain(client, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	o.closeFn = client.Close

	return o, nil
}

// Close releases the RPC connection if the oracle owns one
func (o *OnChain) Close() {
	if o.closeFn != nil {
		o.closeFn()
	}
}

// HasValidLicense reports whether address holds the token at the latest block
func (o *OnChain) HasValidLicense(ctx context.Context, address string) (bool, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	holder := common.HexToAddress(address)

	if o.standard == config.TokenStandardERC721 {
		owner, err := o.ownerOf(ctx)
		if err != nil {
			return false, err
		}
		return owner == holder, nil
	}

	balance, err := o.balanceOf(ctx, holder)
	if err != nil {
		return false, err
	}

	o.logger.DebugContext(ctx, "erc1155 balance",
		slog.String("address", holder.Hex()),
		slog.String("balance", balance.String()),
	)

	return balance.Sign() > 0, nil
}

func (o *OnChain) balanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	out, err := o.call(ctx, "balanceOf", holder, o.tokenID)
	if err != nil {
		return nil, err
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", out[0])
	}
	return balance, nil
}

func (o *OnChain) ownerOf(ctx context.Context) (common.Address, error) {
	out, err := o.call(ctx, "ownerOf", o.tokenID)
	if err != nil {
		return common.Address{}, err
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf returned %T", out[0])
	}
	return owner, nil
}

func (o *OnChain) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := o.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	data, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, o.contract.Hex(), err)
	}

	out, err := o.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}

	return out, nil
}
