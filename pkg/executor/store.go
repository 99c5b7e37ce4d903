package executor

import (
	"math/big"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// The accessor functions below all take atomo.Selector, the exported
// alias for atomo's internal table-selector interface — satisfied by
// both *atomo.TableSelector and *atomo.SubSelector, so method bodies can
// read/write through either one interchangeably.

func metadataTable(sel atomo.Selector) *atomo.Table[txtypes.MetadataKey, *txtypes.MetadataValue] {
	return atomo.GetTable[txtypes.MetadataKey, *txtypes.MetadataValue](sel, TableMetadata)
}

func accountTable(sel atomo.Selector) *atomo.Table[txtypes.Address, *txtypes.Account] {
	return atomo.GetTable[txtypes.Address, *txtypes.Account](sel, TableAccount)
}

func clientKeysTable(sel atomo.Selector) *atomo.Table[txtypes.ClientPublicKey, *txtypes.Account] {
	return atomo.GetTable[txtypes.ClientPublicKey, *txtypes.Account](sel, TableClientKeys)
}

func nodeTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, *txtypes.Node] {
	return atomo.GetTable[txtypes.NodeIndex, *txtypes.Node](sel, TableNode)
}

func pubKeyToIndexTable(sel atomo.Selector) *atomo.Table[txtypes.NodePublicKey, txtypes.NodeIndex] {
	return atomo.GetTable[txtypes.NodePublicKey, txtypes.NodeIndex](sel, TablePubKeyToIndex)
}

func consensusKeyToIndexTable(sel atomo.Selector) *atomo.Table[txtypes.ConsensusPublicKey, txtypes.NodeIndex] {
	return atomo.GetTable[txtypes.ConsensusPublicKey, txtypes.NodeIndex](sel, TableConsensusKeyToIndex)
}

func committeeTable(sel atomo.Selector) *atomo.Table[txtypes.Epoch, *txtypes.Committee] {
	return atomo.GetTable[txtypes.Epoch, *txtypes.Committee](sel, TableCommittee)
}

func latenciesTable(sel atomo.Selector) *atomo.Table[[2]txtypes.NodeIndex, uint64] {
	return atomo.GetTable[[2]txtypes.NodeIndex, uint64](sel, TableLatencies)
}

func serviceTable(sel atomo.Selector) *atomo.Table[uint32, *txtypes.Service] {
	return atomo.GetTable[uint32, *txtypes.Service](sel, TableService)
}

func parameterTable(sel atomo.Selector) *atomo.Table[txtypes.ProtocolParam, *big.Int] {
	return atomo.GetTable[txtypes.ProtocolParam, *big.Int](sel, TableParameter)
}

func repMeasurementsTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, []*txtypes.RepMeasurement] {
	return atomo.GetTable[txtypes.NodeIndex, []*txtypes.RepMeasurement](sel, TableRepMeasurements)
}

func repScoresTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, uint64] {
	return atomo.GetTable[txtypes.NodeIndex, uint64](sel, TableRepScores)
}

func currentEpochServedTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, *txtypes.ServedCounters] {
	return atomo.GetTable[txtypes.NodeIndex, *txtypes.ServedCounters](sel, TableCurrentEpochServed)
}

func lastEpochServedTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, *txtypes.ServedCounters] {
	return atomo.GetTable[txtypes.NodeIndex, *txtypes.ServedCounters](sel, TableLastEpochServed)
}

func totalServedTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, *txtypes.ServedCounters] {
	return atomo.GetTable[txtypes.NodeIndex, *txtypes.ServedCounters](sel, TableTotalServed)
}

func commodityPricesTable(sel atomo.Selector) *atomo.Table[txtypes.Commodity, *big.Int] {
	return atomo.GetTable[txtypes.Commodity, *big.Int](sel, TableCommodityPrices)
}

func executedDigestsTable(sel atomo.Selector) *atomo.Table[[32]byte, bool] {
	return atomo.GetTable[[32]byte, bool](sel, TableExecutedDigests)
}

func uptimeTable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, uint8] {
	return atomo.GetTable[txtypes.NodeIndex, uint8](sel, TableUptime)
}

func uriToNodeTable(sel atomo.Selector) *atomo.Table[txtypes.ContentHash, txtypes.NodeIndex] {
	return atomo.GetTable[txtypes.ContentHash, txtypes.NodeIndex](sel, TableURIToNode)
}

func nodeToURITable(sel atomo.Selector) *atomo.Table[txtypes.NodeIndex, []txtypes.ContentHash] {
	return atomo.GetTable[txtypes.NodeIndex, []txtypes.ContentHash](sel, TableNodeToURI)
}

// paramUint reads a protocol parameter as a uint64, falling back to def
// when the parameter has never been set (e.g. a fresh genesis that
// hasn't populated every optional knob).
func paramUint(sel atomo.Selector, p txtypes.ProtocolParam, def uint64) uint64 {
	v, ok := parameterTable(sel).Get(p)
	if !ok || v == nil {
		return def
	}
	return v.Uint64()
}
