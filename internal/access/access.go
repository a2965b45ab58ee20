// Package access decides visibility of confidential listing fields and
// who may create listings.
package access

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Party is the side of a deal an actor occupies, resolved once per request
// from the record's buyer/seller references.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
	PartyNone   Party = "none"
)

func Normalize(role string) Role {
	switch Role(role) {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return Role(role)
	default:
		return RoleBuyer
	}
}

func ResolveParty(actorID, buyerID, sellerID string) Party {
	switch {
	case actorID != "" && actorID == buyerID:
		return PartyBuyer
	case actorID != "" && actorID == sellerID:
		return PartySeller
	default:
		return PartyNone
	}
}

// Viewer captures everything gating needs to know about the requester with
// respect to one listing.
type Viewer struct {
	UserID     string
	IsVerified bool
	SignedNDA  bool
}

// CanViewConfidential reports whether businessUrl and brandName may be
// returned populated. Both a signed NDA for the listing and a verified buyer
// status are required.
func CanViewConfidential(v Viewer) bool {
	return v.SignedNDA && v.IsVerified
}

// Denial reasons surfaced under INSUFFICIENT_PERMISSIONS so the client can
// render a tailored message.
const (
	DenialBusinessTeacher = "Business Teacher"
	DenialViewer          = "Viewer"
)

// Creator captures the actor attributes consulted for listing creation.
type Creator struct {
	Role             Role
	MembershipActive bool
	TeacherVerified  bool
}

// CanCreateListing returns whether the actor may create listings and, when
// not, the denial reason. Teacher-verified profiles are excluded outright;
// everyone else needs the seller role with an active membership.
func CanCreateListing(c Creator) (bool, string) {
	if c.TeacherVerified {
		return false, DenialBusinessTeacher
	}
	if c.Role != RoleSeller || !c.MembershipActive {
		return false, DenialViewer
	}
	return true, ""
}
