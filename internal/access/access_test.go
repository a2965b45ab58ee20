package access

import "testing"

func TestCanViewConfidential(t *testing.T) {
	cases := []struct {
		name   string
		viewer Viewer
		allow  bool
	}{
		{name: "signed and verified", viewer: Viewer{UserID: "u1", IsVerified: true, SignedNDA: true}, allow: true},
		{name: "signed but unverified", viewer: Viewer{UserID: "u1", SignedNDA: true}, allow: false},
		{name: "verified without nda", viewer: Viewer{UserID: "u1", IsVerified: true}, allow: false},
		{name: "anonymous", viewer: Viewer{}, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanViewConfidential(tc.viewer); got != tc.allow {
				t.Fatalf("CanViewConfidential(%+v) = %v, want %v", tc.viewer, got, tc.allow)
			}
		})
	}
}

func TestCanCreateListing(t *testing.T) {
	cases := []struct {
		name    string
		creator Creator
		allow   bool
		reason  string
	}{
		{name: "active seller", creator: Creator{Role: RoleSeller, MembershipActive: true}, allow: true},
		{name: "teacher-verified seller", creator: Creator{Role: RoleSeller, MembershipActive: true, TeacherVerified: true}, reason: DenialBusinessTeacher},
		{name: "lapsed seller", creator: Creator{Role: RoleSeller}, reason: DenialViewer},
		{name: "buyer", creator: Creator{Role: RoleBuyer, MembershipActive: true}, reason: DenialViewer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allow, reason := CanCreateListing(tc.creator)
			if allow != tc.allow {
				t.Fatalf("CanCreateListing(%+v) = %v, want %v", tc.creator, allow, tc.allow)
			}
			if reason != tc.reason {
				t.Fatalf("denial reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestResolveParty(t *testing.T) {
	if got := ResolveParty("u1", "u1", "u2"); got != PartyBuyer {
		t.Fatalf("expected buyer party, got %q", got)
	}
	if got := ResolveParty("u2", "u1", "u2"); got != PartySeller {
		t.Fatalf("expected seller party, got %q", got)
	}
	if got := ResolveParty("u3", "u1", "u2"); got != PartyNone {
		t.Fatalf("expected no party, got %q", got)
	}
	if got := ResolveParty("", "", "u2"); got != PartyNone {
		t.Fatalf("empty actor must never match, got %q", got)
	}
}
