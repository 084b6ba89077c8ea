package catalog

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Universal-router command bytes: WRAP_ETH (0x0b) followed by V3_SWAP_EXACT_IN (0x00).
var swapCommands = []byte{0x0b, 0x00}

// Router recipient sentinels: 1 = msg.sender, 2 = the router itself.
var (
	recipientSender = common.HexToAddress("0x0000000000000000000000000000000000000001")
	recipientRouter = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// Full-range ticks for a 0.3% pool (tick spacing 60).
const (
	minTick = -887220
	maxTick = 887220
)

var (
	routerABI = mustParseABI(`[{"inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"},{"name":"deadline","type":"uint256"}],"name":"execute","outputs":[],"stateMutability":"payable","type":"function"}]`)

	wrappedABI = mustParseABI(`[{"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},{"inputs":[{"name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}]`)

	erc20ABI = mustParseABI(`[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`)

	positionManagerABI = mustParseABI(`[{"inputs":[{"components":[{"name":"token0","type":"address"},{"name":"token1","type":"address"},{"name":"fee","type":"uint24"},{"name":"tickLower","type":"int24"},{"name":"tickUpper","type":"int24"},{"name":"amount0Desired","type":"uint256"},{"name":"amount1Desired","type":"uint256"},{"name":"amount0Min","type":"uint256"},{"name":"amount1Min","type":"uint256"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"}],"name":"params","type":"tuple"}],"name":"mint","outputs":[{"name":"tokenId","type":"uint256"},{"name":"liquidity","type":"uint128"},{"name":"amount0","type":"uint256"},{"name":"amount1","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`)

	wrapEthArgs = mustArguments("address", "uint256")
	v3SwapArgs  = mustArguments("address", "uint256", "uint256", "bytes", "bool")
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("failed to build ABI type %s: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// MintParams mirrors INonfungiblePositionManager.MintParams.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// EncodePath packs a single-hop V3 path: tokenIn (20) | fee (3) | tokenOut (20).
func EncodePath(tokenIn common.Address, fee uint32, tokenOut common.Address) []byte {
	path := make([]byte, 0, 43)
	path = append(path, tokenIn.Bytes()...)
	path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
	path = append(path, tokenOut.Bytes()...)
	return path
}

// ApplySlippage returns quoted reduced by bps basis points.
func ApplySlippage(quoted *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(quoted, big.NewInt(10000-bps))
	return out.Div(out, big.NewInt(10000))
}

// CanonicalPair orders a token pair so token0 is the lexicographically smaller
// address, carrying each amount with its token.
func CanonicalPair(tokenA common.Address, amountA *big.Int, tokenB common.Address, amountB *big.Int) (common.Address, *big.Int, common.Address, *big.Int) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		return tokenB, amountB, tokenA, amountA
	}
	return tokenA, amountA, tokenB, amountB
}

// EncodeSwap builds execute(0x0b00, [wrapEth, v3SwapExactIn], deadline) calldata.
func EncodeSwap(amountIn, amountOutMin *big.Int, path []byte, deadline *big.Int) ([]byte, error) {
	wrapEth, err := wrapEthArgs.Pack(recipientRouter, amountIn)
	if err != nil {
		return nil, fmt.Errorf("failed to pack wrap input: %w", err)
	}
	v3Swap, err := v3SwapArgs.Pack(recipientSender, amountIn, amountOutMin, path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to pack swap input: %w", err)
	}
	data, err := routerABI.Pack("execute", swapCommands, [][]byte{wrapEth, v3Swap}, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute call: %w", err)
	}
	return data, nil
}

// EncodeDeposit builds deposit() calldata.
func EncodeDeposit() ([]byte, error) {
	return wrappedABI.Pack("deposit")
}

// EncodeWithdraw builds withdraw(amount) calldata.
func EncodeWithdraw(amount *big.Int) ([]byte, error) {
	return wrappedABI.Pack("withdraw", amount)
}

// EncodeApprove builds approve(spender, amount) calldata.
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// EncodeMint builds mint(params) calldata.
func EncodeMint(params MintParams) ([]byte, error) {
	return positionManagerABI.Pack("mint", params)
}

// ToBaseUnits scales a human amount by decimals, truncating any excess precision.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// FormatUnits renders a base-unit amount as a human decimal string.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
