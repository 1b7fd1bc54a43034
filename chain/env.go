package chain

import "time"

type BlockInfo struct {
	Height  uint64 `json:"height"`
	Time    uint64 `json:"time"` // unix nanoseconds
	ChainID string `json:"chain_id"`
}

type ContractInfo struct {
	Address string `json:"address"`
}

// Env is the execution environment handed to every contract entry point.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract ContractInfo `json:"contract"`
}

// BlockTime returns the block time as a time.Time in UTC.
func (e Env) BlockTime() time.Time {
	return time.Unix(0, int64(e.Block.Time)).UTC()
}

// Info carries the caller and the native funds attached to the call.
type Info struct {
	Sender string `json:"sender"`
	Funds  Coins  `json:"funds"`
}
