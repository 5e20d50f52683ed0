package common

// DefaultSearchColumns are the account columns matched by a free-text search
// when the caller does not narrow them down.
var DefaultSearchColumns = []string{"login", "slug", "email", "display_name"}

// GeneratedPasswordBytes is the amount of entropy used for passwords created
// on behalf of accounts registered without one.
const GeneratedPasswordBytes = 12
