package domain

// TxInput represents a normalized transaction input.
// Inputs whose prevout could not be resolved (coinbase included) carry an
// empty address set and zero value.
type TxInput struct {
	PrevTxID  string   `json:"prev_txid,omitempty"`
	PrevVout  uint32   `json:"prev_vout"`
	Addresses []string `json:"addresses"`
	Value     int64    `json:"value"` // sats
}

// TxOutput represents a normalized transaction output
type TxOutput struct {
	Addresses    []string `json:"addresses"`
	Value        int64    `json:"value"` // sats
	ScriptPubKey string   `json:"script_pub_key,omitempty"`
}

// BitcoinTransaction is the indexer-agnostic transaction shape the
// screening core consumes
type BitcoinTransaction struct {
	TxID        string     `json:"txid"`
	BlockHeight int64      `json:"block_height"`
	BlockTime   int64      `json:"block_time"` // seconds since epoch, 0 if unconfirmed
	Inputs      []TxInput  `json:"inputs"`
	Outputs     []TxOutput `json:"outputs"`
	Fee         int64      `json:"fee"`
	Size        int        `json:"size"`
}

// Confirmed reports whether the transaction has been mined
func (t *BitcoinTransaction) Confirmed() bool {
	return t.BlockHeight > 0
}

// AddressValue sums the sats paid from and to the address across the
// transaction's inputs and outputs
func (t *BitcoinTransaction) AddressValue(addr string) int64 {
	var total int64
	for _, in := range t.Inputs {
		for _, a := range in.Addresses {
			if a == addr {
				total += in.Value
				break
			}
		}
	}
	for _, out := range t.Outputs {
		for _, a := range out.Addresses {
			if a == addr {
				total += out.Value
				break
			}
		}
	}
	return total
}

// AddressInfo is a balance and activity summary for an address
type AddressInfo struct {
	Address        string `json:"address"`
	FundedSats     int64  `json:"funded_sats"`
	SpentSats      int64  `json:"spent_sats"`
	BalanceSats    int64  `json:"balance_sats"`
	TxCount        int64  `json:"tx_count"`
	UnconfirmedTxs int64  `json:"unconfirmed_txs,omitempty"`
}

// RateLimitStatus reports the indexer client's request window
type RateLimitStatus struct {
	Count      int   `json:"count"`
	Limit      int   `json:"limit"`
	ResetEpoch int64 `json:"reset_epoch"` // seconds since epoch
}
