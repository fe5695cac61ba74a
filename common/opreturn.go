package common

/*
A deposit names its beneficiary in an OP_RETURN output:

	OP_RETURN <"account[@referral]">

The text may be split over several pushes, they are concatenated.
*/

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/btcsuite/btcd/txscript"
)

const maxAccountLen = 64

var ErrNoOpReturnAccount = errors.New("no valid account in OP_RETURN")

type DepositAccount struct {
	Account  string
	Referral string
}

// MakeAccountOpReturn builds the OP_RETURN script a depositor attaches.
func MakeAccountOpReturn(account, referral string) ([]byte, error) {
	text := account
	if referral != "" {
		text += "@" + referral
	}
	if _, err := ParseAccountText([]byte(text)); err != nil {
		return nil, err
	}
	return txscript.NullDataScript([]byte(text))
}

// DecodeAccountOpReturn extracts the account from a null data script.
func DecodeAccountOpReturn(pkScript []byte) (*DepositAccount, error) {
	if !txscript.IsNullData(pkScript) {
		return nil, ErrNoOpReturnAccount
	}
	pushes, err := txscript.PushedData(pkScript)
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, p := range pushes {
		data = append(data, p...)
	}
	return ParseAccountText(data)
}

func validAccountPart(s string) bool {
	if s == "" || len(s) > maxAccountLen {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) || r == '@' {
			return false
		}
	}
	return true
}

func ParseAccountText(data []byte) (*DepositAccount, error) {
	if !utf8.Valid(data) {
		return nil, ErrNoOpReturnAccount
	}
	account, referral, hasReferral := strings.Cut(string(data), "@")
	if !validAccountPart(account) {
		return nil, ErrNoOpReturnAccount
	}
	if hasReferral && !validAccountPart(referral) {
		return nil, ErrNoOpReturnAccount
	}
	return &DepositAccount{Account: account, Referral: referral}, nil
}
