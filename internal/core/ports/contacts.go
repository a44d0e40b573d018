package ports

// Contact is one entry of the external contact directory.
type Contact struct {
	Name        string
	IdentityKey string
}

// ContactDirectory is the narrow surface of the contact-book subsystem the
// daemon consumes. The concrete implementation lives entirely outside the
// cryptographic core.
type ContactDirectory interface {
	ListContacts() ([]Contact, error)
}
