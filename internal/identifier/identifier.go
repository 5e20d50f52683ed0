// Package identifier turns the many shapes callers use to name an account
// (numeric id, email, login or slug, or a record exposing an id) into a
// tagged Identifier, and resolves it against the host store.
package identifier

import (
	"encoding/json"
	"math"
	"net/mail"
	"strconv"
	"strings"
)

// Kind tags the lookup strategy of an Identifier.
type Kind int

const (
	KindEmpty Kind = iota
	KindID
	KindEmail
	KindLogin
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindEmail:
		return "email"
	case KindLogin:
		return "login"
	case KindRef:
		return "ref"
	default:
		return "empty"
	}
}

// AccountIDer is implemented by records that carry an account id,
// *models.Account among them.
type AccountIDer interface {
	AccountID() int64
}

// Identifier names an account. The zero value is the empty identifier.
// Identifiers are comparable and may be used as map keys.
type Identifier struct {
	kind Kind
	id   int64
	text string
}

// Empty returns the empty identifier.
func Empty() Identifier { return Identifier{} }

// ByID names an account by numeric id.
func ByID(id int64) Identifier { return Identifier{kind: KindID, id: id} }

// ByEmail names an account by email address. The address is not validated;
// use Parse to sniff the shape of untrusted input.
func ByEmail(email string) Identifier {
	return Identifier{kind: KindEmail, text: strings.TrimSpace(email)}
}

// ByLogin names an account by login, with slug as the second chance.
func ByLogin(login string) Identifier {
	return Identifier{kind: KindLogin, text: strings.TrimSpace(login)}
}

// ByRef names the account a record points to. A nil ref is empty.
func ByRef(ref AccountIDer) Identifier {
	if ref == nil {
		return Empty()
	}
	return Identifier{kind: KindRef, id: ref.AccountID()}
}

func (i Identifier) Kind() Kind { return i.kind }

// ID returns the id carried by KindID and KindRef identifiers.
func (i Identifier) ID() int64 { return i.id }

// Text returns the email or login carried by the identifier.
func (i Identifier) Text() string { return i.text }

// IsEmpty reports whether the identifier names nothing explicitly: the empty
// identifier and the numeric id zero.
func (i Identifier) IsEmpty() bool {
	return i.kind == KindEmpty || (i.kind == KindID && i.id == 0)
}

func (i Identifier) String() string {
	switch i.kind {
	case KindID, KindRef:
		return i.kind.String() + ":" + strconv.FormatInt(i.id, 10)
	case KindEmail, KindLogin:
		return i.kind.String() + ":" + i.text
	default:
		return "empty"
	}
}

// Parse infers the Identifier for an arbitrary value:
//
//   - nil, blank strings and unsupported types are empty;
//   - Identifier values are returned as is;
//   - values exposing AccountID are references;
//   - integers, integral floats, json.Number and decimal strings are ids;
//   - strings that are valid email addresses are emails;
//   - any other string is a login.
func Parse(v any) Identifier {
	switch value := v.(type) {
	case nil:
		return Empty()
	case Identifier:
		return value
	case AccountIDer:
		return ByRef(value)
	case int:
		return ByID(int64(value))
	case int8:
		return ByID(int64(value))
	case int16:
		return ByID(int64(value))
	case int32:
		return ByID(int64(value))
	case int64:
		return ByID(value)
	case uint:
		return fromUint(uint64(value))
	case uint8:
		return ByID(int64(value))
	case uint16:
		return ByID(int64(value))
	case uint32:
		return ByID(int64(value))
	case uint64:
		return fromUint(value)
	case float32:
		return fromFloat(float64(value))
	case float64:
		return fromFloat(value)
	case json.Number:
		return ParseString(value.String())
	case []byte:
		return ParseString(string(value))
	case string:
		return ParseString(value)
	default:
		return Empty()
	}
}

// ParseString is Parse for string input.
func ParseString(s string) Identifier {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty()
	}
	if isDecimal(s) {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ByID(id)
		}
	}
	if IsEmail(s) {
		return ByEmail(s)
	}
	return ByLogin(s)
}

// ParseAll parses every value in order.
func ParseAll[T any](values []T) []Identifier {
	out := make([]Identifier, 0, len(values))
	for _, v := range values {
		out = append(out, Parse(v))
	}
	return out
}

// IsEmail reports whether s is a bare, syntactically valid email address
// with a dotted domain. Display names and angle brackets are rejected.
func IsEmail(s string) bool {
	if len(s) < 6 || strings.ContainsAny(s, " <>\"") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}

	at := strings.LastIndexByte(s, '@')
	if at < 1 {
		return false
	}
	domain := s[at+1:]
	if strings.Contains(domain, "..") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// isDecimal reports whether s is an optionally signed run of ASCII digits.
func isDecimal(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func fromUint(v uint64) Identifier {
	if v > math.MaxInt64 {
		return Empty()
	}
	return ByID(int64(v))
}

func fromFloat(f float64) Identifier {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return Empty()
	}
	return ByID(int64(f))
}
