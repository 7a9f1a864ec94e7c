package fundme

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names as recorded in artifacts and deployments
const (
	FundMeName     = "FundMe"
	AggregatorName = "MockV3Aggregator"
)

// FundMeABI is the interface of the FundMe contract
const FundMeABI = `[
	{"type":"constructor","inputs":[{"name":"priceFeed","type":"address","internalType":"address"}],"stateMutability":"nonpayable"},
	{"type":"error","name":"FundMe__NotOwner","inputs":[]},
	{"type":"function","name":"MINIMUM_USD","inputs":[],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"cheaperWithdraw","inputs":[],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"fund","inputs":[],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"getAddressToAmountFunded","inputs":[{"name":"fundingAddress","type":"address","internalType":"address"}],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getFunder","inputs":[{"name":"index","type":"uint256","internalType":"uint256"}],"outputs":[{"name":"","type":"address","internalType":"address"}],"stateMutability":"view"},
	{"type":"function","name":"getOwner","inputs":[],"outputs":[{"name":"","type":"address","internalType":"address"}],"stateMutability":"view"},
	{"type":"function","name":"getPriceFeed","inputs":[],"outputs":[{"name":"","type":"address","internalType":"contract AggregatorV3Interface"}],"stateMutability":"view"},
	{"type":"function","name":"getVersion","inputs":[],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"withdraw","inputs":[],"outputs":[],"stateMutability":"payable"},
	{"type":"fallback","stateMutability":"payable"},
	{"type":"receive","stateMutability":"payable"}
]`

// AggregatorABI is the interface of the MockV3Aggregator price feed
const AggregatorABI = `[
	{"type":"constructor","inputs":[{"name":"_decimals","type":"uint8","internalType":"uint8"},{"name":"_initialAnswer","type":"int256","internalType":"int256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8","internalType":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"latestAnswer","inputs":[],"outputs":[{"name":"","type":"int256","internalType":"int256"}],"stateMutability":"view"},
	{"type":"function","name":"latestRoundData","inputs":[],"outputs":[{"name":"roundId","type":"uint80","internalType":"uint80"},{"name":"answer","type":"int256","internalType":"int256"},{"name":"startedAt","type":"uint256","internalType":"uint256"},{"name":"updatedAt","type":"uint256","internalType":"uint256"},{"name":"answeredInRound","type":"uint80","internalType":"uint80"}],"stateMutability":"view"},
	{"type":"function","name":"updateAnswer","inputs":[{"name":"_answer","type":"int256","internalType":"int256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"version","inputs":[],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"}
]`

var (
	parseOnce     sync.Once
	fundMeABI     abi.ABI
	aggregatorABI abi.ABI
)

func parseABIs() {
	var err error
	if fundMeABI, err = abi.JSON(strings.NewReader(FundMeABI)); err != nil {
		panic("fundme: invalid FundMe ABI: " + err.Error())
	}
	if aggregatorABI, err = abi.JSON(strings.NewReader(AggregatorABI)); err != nil {
		panic("fundme: invalid aggregator ABI: " + err.Error())
	}
}

// ParsedFundMeABI returns the parsed FundMe ABI
func ParsedFundMeABI() *abi.ABI {
	parseOnce.Do(parseABIs)
	return &fundMeABI
}

// ParsedAggregatorABI returns the parsed MockV3Aggregator ABI
func ParsedAggregatorABI() *abi.ABI {
	parseOnce.Do(parseABIs)
	return &aggregatorABI
}
