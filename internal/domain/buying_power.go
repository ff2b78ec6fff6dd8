package domain

import (
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// PowerSource says where a buying-power snapshot came from.
type PowerSource string

const (
	PowerGateway PowerSource = "GATEWAY"
	PowerDerived PowerSource = "DERIVED" // locally derived between gateway reads
)

// BuyingPowerSnapshot is one observation of available collateral. Snapshots
// form an append-only log; "current" is simply the most recent row.
type BuyingPowerSnapshot struct {
	ObservedUnixM     quant.TimeStamp
	TotalAssetsMicros int64 // total account assets in yen micros
	TotalMarginMicros int64 // margin currently in use in yen micros
	Source            PowerSource
}
