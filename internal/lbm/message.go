package lbm

import "strings"

// Kind discriminates bridge messages in both directions.
type Kind string

const (
	KindTokenize     Kind = "TOKENIZE"
	KindTokenResult  Kind = "TOKEN_RESULT"
	KindUpload       Kind = "UPLOAD"
	KindUploadResult Kind = "UPLOAD_RESULT"
)

// ResultCode is the structured failure category stamped on result events at
// the transport boundary. The legacy wire format carries only free text;
// see ClassifyFailure for the mapping applied to peers that predate Code.
type ResultCode string

const (
	CodeNone         ResultCode = ""
	CodeAuthRejected ResultCode = "AUTH_REJECTED" // token invalid, expired or credentials refused
	CodeBadRequest   ResultCode = "BAD_REQUEST"   // malformed request, missing fields
	CodeUpstream     ResultCode = "UPSTREAM"      // host store failure, quota, I/O
)

// Message is the single envelope exchanged with the bridge peer. The wire
// protocol carries no correlation id, so at most one request of a given
// kind may be outstanding; responses are matched purely by Kind.
type Message struct {
	Kind Kind `json:"type"`

	// Tokenize request fields.
	RawKey    string `json:"rawKey,omitempty"`
	AdminPass string `json:"adminPass,omitempty"`

	// Result fields (TOKEN_RESULT and UPLOAD_RESULT).
	Success bool       `json:"success"`
	Token   string     `json:"token,omitempty"`
	Text    string     `json:"message,omitempty"`
	Code    ResultCode `json:"code,omitempty"`

	// Upload request fields.
	AuthToken     string `json:"authToken,omitempty"`
	PasswordCheck string `json:"passwordCheck,omitempty"`
	FileContent   string `json:"fileContent,omitempty"`
	Filename      string `json:"filename,omitempty"`
	MediaPayload  []byte `json:"mediaFile,omitempty"`
	MediaName     string `json:"mediaName,omitempty"`

	// Delivery is stamped on inbound events by the peer. It exists for
	// logging and duplicate diagnostics only and is never used for
	// routing; the protocol itself has no correlation ids.
	Delivery string `json:"-"`
}

// Transport is a one-way, fire-and-forget message pathway to the bridge
// peer. Delivery cannot be confirmed at this layer. Outbound messages are
// forwarded in FIFO order; inbound events arrive asynchronously on Events
// and may include spurious or duplicate entries. Send before the peer
// handshake completes fails with ErrNotReady rather than vanishing.
type Transport interface {
	Send(msg Message) error
	Events() <-chan Message
	Close() error
}

// legacyAuthSignatures are the free-text fragments legacy peers emit for
// credential failures. Mapping table (legacy text -> CodeAuthRejected):
//
//	"Invalid or Corrupted Token"  token unseal failed on the peer
//	"403"                         upstream host returned Forbidden
//	"invalid credentials"         key or password check failed
//
// Everything else is classified CodeUpstream and is never auto-retried.
var legacyAuthSignatures = []string{
	"Invalid or Corrupted Token",
	"403",
	"invalid credentials",
}

// ClassifyFailure returns the failure category for a result event. A
// structured Code always wins; free text from legacy peers is matched
// against the documented signature table above.
func ClassifyFailure(m Message) ResultCode {
	if m.Code != CodeNone {
		return m.Code
	}
	for _, sig := range legacyAuthSignatures {
		if strings.Contains(m.Text, sig) {
			return CodeAuthRejected
		}
	}
	return CodeUpstream
}
