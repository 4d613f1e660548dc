package erc20

// Token describes an ERC-20 token and where it is deployed.
type Token struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals int    `json:"decimals" yaml:"decimals"`
	// Addresses maps EVM chain ids to contract addresses.
	Addresses map[int64]string `json:"addresses" yaml:"addresses"`
}

var (
	USDC = Token{
		Symbol:   "USDC",
		Name:     "USDC",
		Decimals: 6,
		Addresses: map[int64]string{
			1:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			10:       "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
			137:      "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
			8453:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			42161:    "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			84532:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			11155111: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		},
	}
	USDT = Token{
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
		Addresses: map[int64]string{
			1: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		},
	}
	PEPE = Token{
		Symbol:   "PEPE",
		Name:     "Pepe",
		Decimals: 18,
		Addresses: map[int64]string{
			1: "0x6982508145454Ce325dDbE47a25d4ec3d2311933",
		},
	}
)

// PredefinedTokens are the tokens known without configuration.
var PredefinedTokens = []Token{USDC, USDT, PEPE}

// LookupToken finds a predefined token by symbol.
func LookupToken(symbol string) (Token, bool) {
	for _, t := range PredefinedTokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}
