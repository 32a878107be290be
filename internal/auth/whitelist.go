package auth

// RejectionReply is sent to any sender outside the whitelist.
const RejectionReply = "Sorry, You have no authorization for this action !"

// Whitelist authorizes the two configured operator identities.
type Whitelist struct {
	primary   string
	secondary string
}

// NewWhitelist creates a whitelist of primary and secondary identities.
func NewWhitelist(primary, secondary string) *Whitelist {
	return &Whitelist{primary: primary, secondary: secondary}
}

// Authorize reports whether identity equals one of the configured
// identities. An unset identity never matches.
func (w *Whitelist) Authorize(identity string) bool {
	if identity == "" {
		return false
	}
	return identity == w.primary || identity == w.secondary
}

// Primary returns the primary operator identity.
func (w *Whitelist) Primary() string {
	return w.primary
}

// Secondary returns the secondary (group/channel) identity.
func (w *Whitelist) Secondary() string {
	return w.secondary
}
