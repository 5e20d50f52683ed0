package services

import (
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/models"
)

// Outcome is the result of one element of a bulk operation. Outcomes are
// returned in input order, one per element.
type Outcome struct {
	Identifier identifier.Identifier
	AccountID  int64
	OK         bool
	Err        error
}

// CreateStatus classifies the result of creating one account.
type CreateStatus int

const (
	CreateFailed CreateStatus = iota
	Created
	CreateExists
)

func (s CreateStatus) String() string {
	switch s {
	case Created:
		return "created"
	case CreateExists:
		return "exists"
	default:
		return "failed"
	}
}

// CreateOutcome is the result of creating one account in a batch.
// Password is set only when it was generated.
type CreateOutcome struct {
	Login    string
	Status   CreateStatus
	Account  *models.Account
	Password string
	Err      error
}

// Field pairs an account id with one of its attributes.
type Field struct {
	ID    int64
	Value string
}

func countOK(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.OK {
			n++
		}
	}
	return n
}
