package state

// RoleTermsSigner marks addresses allowed to authorise loan terms.
const RoleTermsSigner = "loans.terms_signer"

// RoleView answers membership questions for a single role within a
// transaction.
type RoleView struct {
	tx   *Tx
	role string
}

func NewRoleView(tx *Tx, role string) RoleView {
	return RoleView{tx: tx, role: role}
}

// IsAuthorizedSigner reports whether addr holds the view's role.
func (v RoleView) IsAuthorizedSigner(addr [20]byte) (bool, error) {
	if v.tx == nil {
		return false, errNilDB
	}
	return v.tx.HasRole(v.role, addr[:])
}
