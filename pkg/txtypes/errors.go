package txtypes

// ExecutionError is a typed reason a transaction's method body was rolled
// back. It is a successful outcome in the receipt sense: a receipt is
// still produced, and the sender's nonce is still consumed whenever the
// sender resolves to an account or an existing node, per spec section
// 4.3's failure policy.
type ExecutionError string

const (
	ErrInvalidChainID             ExecutionError = "InvalidChainId"
	ErrInvalidSignature           ExecutionError = "InvalidSignature"
	ErrInvalidNonce               ExecutionError = "InvalidNonce"
	ErrInvalidProof               ExecutionError = "InvalidProof"
	ErrOnlyAccountOwner           ExecutionError = "OnlyAccountOwner"
	ErrOnlyNode                   ExecutionError = "OnlyNode"
	ErrOnlyGovernance             ExecutionError = "OnlyGovernance"
	ErrNodeDoesNotExist           ExecutionError = "NodeDoesNotExist"
	ErrNonExistingService         ExecutionError = "NonExistingService"
	ErrInsufficientBalance        ExecutionError = "InsufficientBalance"
	ErrInsufficientNodeDetails    ExecutionError = "InsufficientNodeDetails"
	ErrConsensusKeyAlreadyIndexed ExecutionError = "ConsensusKeyAlreadyIndexed"
	ErrNotNodeOwner               ExecutionError = "NotNodeOwner"
	ErrInsufficientStake          ExecutionError = "InsufficientStake"
	ErrInsufficientStakesToLock   ExecutionError = "InsufficientStakesToLock"
	ErrLockExceededMaxStakeLock   ExecutionError = "LockExceededMaxStakeLockTime"
	ErrLockedTokensUnstakeForbid  ExecutionError = "LockedTokensUnstakeForbidden"
	ErrTokensLocked               ExecutionError = "TokensLocked"
	ErrEpochAlreadyChanged        ExecutionError = "EpochAlreadyChanged"
	ErrEpochHasNotStarted         ExecutionError = "EpochHasNotStarted"
	ErrUnknownPhaseType           ExecutionError = "UnknownPhaseType"
	ErrInvalidReveal              ExecutionError = "InvalidReveal"
	ErrUnimplemented              ExecutionError = "Unimplemented"
)

// Error implements the error interface so ExecutionError can be returned
// from internal helpers and still be wrapped with fmt.Errorf where useful,
// without ever crossing the executor boundary as a Go error (spec section
// 7's propagation policy: validation errors never escape the executor).
func (e ExecutionError) Error() string { return string(e) }
