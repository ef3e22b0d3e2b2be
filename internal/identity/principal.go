package identity

import "fmt"

// Principal is what the identity provider reports for a session. It is one
// of Unauthenticated, AuthenticatedNoWallet or AuthenticatedWithWallet.
type Principal interface {
	isPrincipal()
}

type Unauthenticated struct{}

// AuthenticatedNoWallet is a signed-in identity without a ledger account yet.
type AuthenticatedNoWallet struct {
	Subject string
}

type AuthenticatedWithWallet struct {
	Subject  string
	OwnerKey string
}

func (Unauthenticated) isPrincipal()         {}
func (AuthenticatedNoWallet) isPrincipal()   {}
func (AuthenticatedWithWallet) isPrincipal() {}

// OwnerKey returns the ledger owner of p, if it has one.
func OwnerKey(p Principal) (string, bool) {
	if w, ok := p.(AuthenticatedWithWallet); ok && w.OwnerKey != "" {
		return w.OwnerKey, true
	}
	return "", false
}

// PrincipalFrom builds the variant from provider fields: an empty subject is
// unauthenticated, an empty owner key means no wallet.
func PrincipalFrom(subject, ownerKey string) Principal {
	switch {
	case subject == "" && ownerKey == "":
		return Unauthenticated{}
	case ownerKey == "":
		return AuthenticatedNoWallet{Subject: subject}
	default:
		return AuthenticatedWithWallet{Subject: subject, OwnerKey: ownerKey}
	}
}

func describe(p Principal) string {
	switch v := p.(type) {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedNoWallet:
		return fmt.Sprintf("subject %s without wallet", v.Subject)
	case AuthenticatedWithWallet:
		return fmt.Sprintf("subject %s with wallet %s", v.Subject, v.OwnerKey)
	default:
		return fmt.Sprintf("unknown principal %T", p)
	}
}
