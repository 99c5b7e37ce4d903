// Package executor is the deterministic state-transition function: it
// validates an UpdateRequest (signature, nonce, chain id, replay guard,
// method authority, in that order) and, if validation passes, runs the method body
// against a discardable sub-selector so a business-logic revert costs
// nothing but the sender's nonce.
package executor

import "github.com/lumenetwork/corestate/pkg/atomo"

// Table names, matching the application table list.
const (
	TableMetadata            = "metadata"
	TableAccount              = "account"
	TableClientKeys           = "client_keys"
	TableNode                 = "node"
	TablePubKeyToIndex        = "pub_key_to_index"
	TableConsensusKeyToIndex  = "consensus_key_to_index"
	TableCommittee            = "committee"
	TableLatencies            = "latencies"
	TableService               = "service"
	TableParameter             = "parameter"
	TableRepMeasurements       = "rep_measurements"
	TableRepScores             = "rep_scores"
	TableCurrentEpochServed    = "current_epoch_served"
	TableLastEpochServed       = "last_epoch_served"
	TableTotalServed           = "total_served"
	TableCommodityPrices       = "commodity_prices"
	TableExecutedDigests       = "executed_digests"
	TableUptime                = "uptime"
	TableURIToNode              = "uri_to_node"
	TableNodeToURI               = "node_to_uri"
)

// RegisterTables declares every application table on b, in the exact
// order this list is written in, so on-disk table ids stay stable across
// builds as long as this list is only ever appended to.
func RegisterTables(b *atomo.Builder) {
	b.AddTable(TableMetadata)
	b.AddTable(TableAccount)
	b.AddTable(TableClientKeys)
	b.AddTable(TableNode, atomo.WithIter())
	b.AddTable(TablePubKeyToIndex)
	b.AddTable(TableConsensusKeyToIndex)
	b.AddTable(TableCommittee)
	b.AddTable(TableLatencies, atomo.WithIter())
	b.AddTable(TableService)
	b.AddTable(TableParameter)
	b.AddTable(TableRepMeasurements, atomo.WithIter())
	b.AddTable(TableRepScores, atomo.WithIter())
	b.AddTable(TableCurrentEpochServed, atomo.WithIter())
	b.AddTable(TableLastEpochServed, atomo.WithIter())
	b.AddTable(TableTotalServed)
	b.AddTable(TableCommodityPrices)
	b.AddTable(TableExecutedDigests, atomo.WithIter())
	b.AddTable(TableUptime, atomo.WithIter())
	b.AddTable(TableURIToNode, atomo.WithIter())
	b.AddTable(TableNodeToURI, atomo.WithIter())
}

// IsReservedTable reports whether name is a merklize-provider-owned
// bookkeeping table (the "%"-prefixed state-tree tables), which recovery
// operations (clear/rebuild) must skip when iterating "every application
// table."
func IsReservedTable(name string) bool {
	return len(name) > 0 && name[0] == '%'
}
