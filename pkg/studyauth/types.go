package studyauth

import "time"

// SharingScope is a participant-chosen policy controlling how broadly their
// study data may be shared.
type SharingScope string

const (
	SharingNone                    SharingScope = "no_sharing"
	SharingSponsorsAndPartners     SharingScope = "sponsors_and_partners"
	SharingAllQualifiedResearchers SharingScope = "all_qualified_researchers"
)

// Phone identifies a participant by phone number.
type Phone struct {
	RegionCode string `json:"regionCode" cbor:"1,keyasint"`
	Number     string `json:"number" cbor:"2,keyasint"`
}

// Credentials holds the locally stored identity of a participant. At most one
// identity channel (email or phone) is meaningful at a time; an empty password
// means a passwordless link flow.
type Credentials struct {
	Email    string `json:"email,omitempty" cbor:"1,keyasint,omitempty"`
	Phone    *Phone `json:"phone,omitempty" cbor:"2,keyasint,omitempty"`
	Password string `json:"password,omitempty" cbor:"3,keyasint,omitempty"`
}

// IsZero reports whether no identity is stored.
func (c Credentials) IsZero() bool {
	return c.Email == "" && c.Phone == nil
}

// SignUp is the record submitted to register a new participant.
type SignUp struct {
	StudyID      string            `json:"study"`
	Email        string            `json:"email,omitempty"`
	Phone        *Phone            `json:"phone,omitempty"`
	Password     string            `json:"password,omitempty"`
	ExternalID   string            `json:"externalId,omitempty"`
	DataGroups   []string          `json:"dataGroups,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	SharingScope SharingScope      `json:"sharingScope,omitempty"`
}

// ConsentStatus is the server's view of one subpopulation's consent for the
// current participant.
type ConsentStatus struct {
	Name                    string `json:"name"`
	SubpopulationGUID       string `json:"subpopulationGuid"`
	Required                bool   `json:"required"`
	Consented               bool   `json:"consented"`
	SignedMostRecentConsent bool   `json:"signedMostRecentConsent"`
}

// Session is the server-issued value representing an authenticated
// participant, including per-subpopulation consent status. It is replaced
// wholesale by each successful authenticated call and cleared on sign-out.
type Session struct {
	Token           string                   `json:"sessionToken" cbor:"1,keyasint"`
	ID              string                   `json:"id" cbor:"2,keyasint"`
	Email           string                   `json:"email,omitempty" cbor:"3,keyasint,omitempty"`
	Phone           *Phone                   `json:"phone,omitempty" cbor:"4,keyasint,omitempty"`
	Authenticated   bool                     `json:"authenticated" cbor:"5,keyasint"`
	Consented       bool                     `json:"consented" cbor:"6,keyasint"`
	SharingScope    SharingScope             `json:"sharingScope,omitempty" cbor:"7,keyasint,omitempty"`
	ConsentStatuses map[string]ConsentStatus `json:"consentStatuses,omitempty" cbor:"8,keyasint,omitempty"`
}

// MissingRequiredConsents returns the GUIDs of subpopulations that require
// consent the participant has not given.
func (s *Session) MissingRequiredConsents() []string {
	if s == nil {
		return nil
	}
	var missing []string
	for guid, status := range s.ConsentStatuses {
		if status.Required && !status.Consented {
			missing = append(missing, guid)
		}
	}
	return missing
}

// HasConsentRequirements reports whether the session carries any required
// subpopulation at all.
func (s *Session) HasConsentRequirements() bool {
	if s == nil {
		return false
	}
	for _, status := range s.ConsentStatuses {
		if status.Required {
			return true
		}
	}
	return false
}

// ConsentSignature is the locally recorded agreement of a participant to one
// subpopulation's consent terms. It is created before any network
// confirmation and survives failed uploads; only an explicit local clear
// removes it.
type ConsentSignature struct {
	SubpopulationGUID string       `json:"subpopulationGuid" cbor:"1,keyasint"`
	Name              string       `json:"name" cbor:"2,keyasint"`
	Birthdate         string       `json:"birthdate" cbor:"3,keyasint"` // YYYY-MM-DD
	ImageData         []byte       `json:"imageData,omitempty" cbor:"4,keyasint,omitempty"`
	ImageMimeType     string       `json:"imageMimeType,omitempty" cbor:"5,keyasint,omitempty"`
	Scope             SharingScope `json:"scope" cbor:"6,keyasint"`
}

// Participant is the study participant record as known to the server.
type Participant struct {
	FirstName    string            `json:"firstName,omitempty" cbor:"1,keyasint,omitempty"`
	LastName     string            `json:"lastName,omitempty" cbor:"2,keyasint,omitempty"`
	Email        string            `json:"email,omitempty" cbor:"3,keyasint,omitempty"`
	ExternalID   string            `json:"externalId,omitempty" cbor:"4,keyasint,omitempty"`
	DataGroups   []string          `json:"dataGroups,omitempty" cbor:"5,keyasint,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" cbor:"6,keyasint,omitempty"`
	SharingScope SharingScope      `json:"sharingScope,omitempty" cbor:"7,keyasint,omitempty"`
}

// UploadSession is the server's grant for uploading one participant data
// archive: an upload identifier plus a pre-signed destination URL.
type UploadSession struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

// ScheduledActivity is one entry of the participant's activity schedule.
type ScheduledActivity struct {
	GUID        string     `json:"guid"`
	Label       string     `json:"label,omitempty"`
	ScheduledOn time.Time  `json:"scheduledOn"`
	ExpiresOn   *time.Time `json:"expiresOn,omitempty"`
	StartedOn   *time.Time `json:"startedOn,omitempty"`
	FinishedOn  *time.Time `json:"finishedOn,omitempty"`
	ClientData  any        `json:"clientData,omitempty"`
}
