package passkey

const (
	// DefaultRPName is the relying party display name.
	DefaultRPName = "7Haven"
	// DefaultTimeout is the sign-in ceremony timeout in milliseconds.
	DefaultTimeout = 60000

	defaultDisplayName = "Default"
	defaultUserName    = "user@example.com"
)

// COSE algorithm identifiers accepted for new credentials.
const (
	AlgES256 = -7
	AlgRS256 = -257
)

// User is the account a credential is registered for.
type User struct {
	Username string
	Email    string
}

type RelyingParty struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type UserEntity struct {
	ID          []byte `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// CredentialDescriptor names an existing credential.
type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         []byte   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

type AuthenticatorSelection struct {
	UserVerification   string `json:"userVerification"`
	ResidentKey        string `json:"residentKey"`
	RequireResidentKey bool   `json:"requireResidentKey"`
}

// CreationOptions are the parameters of a registration ceremony.
type CreationOptions struct {
	Challenge              []byte                 `json:"challenge"`
	RP                     RelyingParty           `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []CredentialParameter  `json:"pubKeyCredParams"`
	Attestation            string                 `json:"attestation"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials"`
}

// RequestOptions are the parameters of a sign-in ceremony.
type RequestOptions struct {
	Challenge        []byte `json:"challenge"`
	RPID             string `json:"rpId,omitempty"`
	UserVerification string `json:"userVerification"`
	Timeout          int    `json:"timeout"`
}

// NewCreationOptions builds registration options. existing credentials are
// excluded so an authenticator is never enrolled twice.
func NewCreationOptions(rp RelyingParty, challenge []byte, user User, credentialUserID []byte, existing []CredentialDescriptor) CreationOptions {
	if rp.Name == "" {
		rp.Name = DefaultRPName
	}
	display := user.Username
	if display == "" {
		display = defaultDisplayName
	}
	name := user.Email
	if name == "" {
		name = defaultUserName
	}
	if existing == nil {
		existing = []CredentialDescriptor{}
	}
	return CreationOptions{
		Challenge: challenge,
		RP:        rp,
		User: UserEntity{
			ID:          credentialUserID,
			Name:        name,
			DisplayName: display,
		},
		PubKeyCredParams: []CredentialParameter{
			{Type: "public-key", Alg: AlgES256},
			{Type: "public-key", Alg: AlgRS256},
		},
		Attestation: "none",
		AuthenticatorSelection: AuthenticatorSelection{
			UserVerification:   "required",
			ResidentKey:        "required",
			RequireResidentKey: true,
		},
		ExcludeCredentials: existing,
	}
}

// NewRequestOptions builds sign-in options.
func NewRequestOptions(rpID string, challenge []byte) RequestOptions {
	return RequestOptions{
		Challenge:        challenge,
		RPID:             rpID,
		UserVerification: "required",
		Timeout:          DefaultTimeout,
	}
}
