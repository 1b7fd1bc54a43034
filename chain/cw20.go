package chain

import "encoding/json"

// Cw20ExecuteMsg is the subset of the cw20 token interface the pipeline uses.
type Cw20ExecuteMsg struct {
	Transfer *Cw20Transfer `json:"transfer,omitempty"`
	Send     *Cw20Send     `json:"send,omitempty"`
	Mint     *Cw20Mint     `json:"mint,omitempty"`
}

type Cw20Transfer struct {
	Recipient string `json:"recipient"`
	Amount    Amount `json:"amount"`
}

type Cw20Send struct {
	Contract string          `json:"contract"`
	Amount   Amount          `json:"amount"`
	Msg      json.RawMessage `json:"msg"`
}

type Cw20Mint struct {
	Recipient string `json:"recipient"`
	Amount    Amount `json:"amount"`
}

// Cw20ReceiveMsg is delivered to a contract by a token's send.
type Cw20ReceiveMsg struct {
	Sender string          `json:"sender"`
	Amount Amount          `json:"amount"`
	Msg    json.RawMessage `json:"msg"`
}

// Cw20ReceiveEnvelope wraps Cw20ReceiveMsg as the receiver's execute payload.
type Cw20ReceiveEnvelope struct {
	Receive Cw20ReceiveMsg `json:"receive"`
}

type Cw20QueryMsg struct {
	Balance   *Cw20BalanceQuery `json:"balance,omitempty"`
	TokenInfo *struct{}         `json:"token_info,omitempty"`
}

type Cw20BalanceQuery struct {
	Address string `json:"address"`
}

type Cw20BalanceResponse struct {
	Balance Amount `json:"balance"`
}

type Cw20TokenInfoResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply Amount `json:"total_supply"`
}

type Cw20InstantiateMsg struct {
	Name            string        `json:"name"`
	Symbol          string        `json:"symbol"`
	Decimals        uint8         `json:"decimals"`
	InitialBalances []Cw20Balance `json:"initial_balances"`
	Minter          string        `json:"minter,omitempty"`
}

// Cw20Balance is a holder balance set at instantiation.
type Cw20Balance struct {
	Address string `json:"address"`
	Amount  Amount `json:"amount"`
}
