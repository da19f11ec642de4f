package tradestate

import "encoding/binary"

// Bucket names mirror the original trading-state index prefixes: every
// persisted index lives in its own bucket named after that prefix, and the
// keys inside a bucket carry no prefix of their own.
const (
	bucketClientOrderIDExchangeOrderID = "coi" // client_order_id -> exchange_order_id
	bucketClientOrderIDWantPrice       = "cwp" // client_order_id -> want price
	bucketExchangeOrderIDWantPrice     = "ewp" // exchange_order_id -> want price
	bucketExchangeOrderIDOrder         = "eo"  // exchange_order_id -> Order
	bucketExchangeOrderIDTrade         = "et"  // exchange_order_id+trade_id -> UserTrade
	bucketOnOrderClientOrderID         = "coo" // client_order_id -> present once acknowledged
	bucketClosedExchangeOrderID        = "closed"
	bucketAccount                      = "account"
)

func clientOrderKey(clientOrderID string) []byte {
	return []byte(clientOrderID)
}

func exchangeOrderKey(exchangeOrderID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, exchangeOrderID)
	return buf
}

func tradeKey(exchangeOrderID, tradeID uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], exchangeOrderID)
	binary.BigEndian.PutUint64(buf[8:], tradeID)
	return buf
}

func tradeKeyPrefix(exchangeOrderID uint64) []byte {
	return exchangeOrderKey(exchangeOrderID)
}

func tradeKeyPrefixUpperBound(exchangeOrderID uint64) []byte {
	return exchangeOrderKey(exchangeOrderID + 1)
}

const accountSingletonKey = "account"
