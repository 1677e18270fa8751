package emt

// Outcome classifies the provider's response code.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeDisabled
	OutcomeInvalidToken
	OutcomeQuotaExceeded
	OutcomeDegraded
)

const (
	codeLoginOK      = "01"
	codeOK           = "00"
	codeInvalidToken = "80"
	codeDegraded     = "81"
	codeDisabled     = "90"
	codeQuota        = "98"
)

// ClassifyCode maps a response code of the stop, station and arrivals endpoints.
// Codes not listed here are OutcomeUnknown and are parsed like a success.
func ClassifyCode(code string) Outcome {
	switch code {
	case codeOK:
		return OutcomeSuccess
	case codeDisabled:
		return OutcomeDisabled
	case codeInvalidToken:
		return OutcomeInvalidToken
	case codeQuota:
		return OutcomeQuotaExceeded
	case codeDegraded:
		return OutcomeDegraded
	default:
		return OutcomeUnknown
	}
}

// LoginSucceeded reports whether a login response code grants a token.
func LoginSucceeded(code string) bool {
	return code == codeLoginOK
}

// Rejected is true for the outcomes that leave the record untouched.
func (o Outcome) Rejected() bool {
	return o == OutcomeDisabled || o == OutcomeInvalidToken || o == OutcomeQuotaExceeded
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeInvalidToken:
		return "invalid-token"
	case OutcomeQuotaExceeded:
		return "quota-exceeded"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}
