package txtypes

// MetadataKey enumerates the tags stored in the metadata table.
type MetadataKey uint8

const (
	MetadataChainID MetadataKey = iota
	MetadataEpoch
	MetadataLastEpochHash
	MetadataGenesisCommittee
	MetadataBeaconPhase
	MetadataGenesisApplied
	MetadataGovernanceAddress
	MetadataProtocolFundAddress
)

// MetadataValue is a tagged union over the metadata table's value types.
// A plain Go interface-per-kind would force type assertions throughout
// callers; a single struct with a Kind discriminant mirrors how the
// table's JSON codec round-trips it and keeps Get/Set call sites terse.
type MetadataValue struct {
	Kind MetadataKey

	ChainID          uint32
	Epoch            Epoch
	Hash             [32]byte
	GenesisCommittee []NodeIndex
	Phase            BeaconPhase
	Applied          bool
	Address          Address
}
