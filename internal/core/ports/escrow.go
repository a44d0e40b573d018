package ports

// EscrowIdentityProvider supplies the co-signing escrow identity used by
// funding derivation and the activation sweep. It is always injected into
// the operations that need it, never read from a module-level constant, so
// that test-only identities cannot leak into production wiring.
type EscrowIdentityProvider interface {
	// Fingerprint returns the escrow's master key fingerprint in hex.
	Fingerprint() string
	// AccountExtendedPublicKey returns the escrow's account-level extended
	// public key for the multisig purpose root.
	AccountExtendedPublicKey() string
	// SignPartialTransaction asks the escrow to add its signatures to the
	// given base64 partial transaction envelope and returns the updated
	// envelope.
	SignPartialTransaction(partialTx string) (string, error)
}
