package indexer

import "github.com/cryptocompliance/btc-screening/internal/domain"

// esploraTx is the transaction shape returned by Esplora-compatible
// indexers (Blockstream, mempool.space)
type esploraTx struct {
	TxID   string `json:"txid"`
	Size   int    `json:"size"`
	Weight int    `json:"weight"`
	Fee    int64  `json:"fee"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		TxID    string `json:"txid"`
		Vout    uint32 `json:"vout"`
		Prevout *struct {
			ScriptPubKey        string `json:"scriptpubkey"`
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
			Value               int64  `json:"value"`
		} `json:"prevout"`
		IsCoinbase bool `json:"is_coinbase"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKey        string `json:"scriptpubkey"`
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
}

// esploraAddress is the address summary shape
type esploraAddress struct {
	Address    string `json:"address"`
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
		TxCount      int64 `json:"tx_count"`
	} `json:"chain_stats"`
	MempoolStats struct {
		TxCount int64 `json:"tx_count"`
	} `json:"mempool_stats"`
}

// normalizeTx converts the provider shape into the core's transaction
// model. Inputs without a resolvable prevout (coinbase included) are
// normalized to an empty address set and zero value.
func normalizeTx(src esploraTx) *domain.BitcoinTransaction {
	tx := &domain.BitcoinTransaction{
		TxID: src.TxID,
		Fee:  src.Fee,
		Size: src.Size,
	}
	if src.Status.Confirmed {
		tx.BlockHeight = src.Status.BlockHeight
		tx.BlockTime = src.Status.BlockTime
	}

	tx.Inputs = make([]domain.TxInput, 0, len(src.Vin))
	for _, vin := range src.Vin {
		in := domain.TxInput{
			PrevTxID:  vin.TxID,
			PrevVout:  vin.Vout,
			Addresses: []string{},
		}
		if vin.Prevout != nil {
			in.Value = vin.Prevout.Value
			if vin.Prevout.ScriptPubKeyAddress != "" {
				in.Addresses = []string{vin.Prevout.ScriptPubKeyAddress}
			}
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	tx.Outputs = make([]domain.TxOutput, 0, len(src.Vout))
	for _, vout := range src.Vout {
		out := domain.TxOutput{
			Addresses:    []string{},
			Value:        vout.Value,
			ScriptPubKey: vout.ScriptPubKey,
		}
		if vout.ScriptPubKeyAddress != "" {
			out.Addresses = []string{vout.ScriptPubKeyAddress}
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	return tx
}

func normalizeAddressInfo(src esploraAddress) *domain.AddressInfo {
	return &domain.AddressInfo{
		Address:        src.Address,
		FundedSats:     src.ChainStats.FundedTxoSum,
		SpentSats:      src.ChainStats.SpentTxoSum,
		BalanceSats:    src.ChainStats.FundedTxoSum - src.ChainStats.SpentTxoSum,
		TxCount:        src.ChainStats.TxCount,
		UnconfirmedTxs: src.MempoolStats.TxCount,
	}
}
