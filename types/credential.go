package types

// Credential is a signed, time-bounded grant of one identity's access to one
// room. Immutable once issued — expiry or a room change always produces a new
// Credential, never an in-place mutation.
type Credential struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// Zero reports whether the credential has never been issued.
func (c Credential) Zero() bool {
	return c.Token == ""
}
