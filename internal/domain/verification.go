package domain

// Verdict is the terminal outcome of one verification attempt. The engine
// never retries internally; a caller may re-invoke with a new frame.
type Verdict string

const (
	VerdictAuthentic       Verdict = "AUTHENTIC"
	VerdictModified        Verdict = "MODIFIED"
	VerdictContentMismatch Verdict = "CONTENT MISMATCH"
	VerdictTampered        Verdict = "TAMPERED"
	VerdictPoorQuality     Verdict = "POOR PHOTO QUALITY"
	VerdictNotInRegistry   Verdict = "NOT IN REGISTRY"
	VerdictNoQRFound       Verdict = "NO QR FOUND"

	// Adapter-level verdicts for malformed requests, matching the original
	// endpoint responses.
	VerdictNoID    Verdict = "NO ID"
	VerdictNoFile  Verdict = "NO FILE"
	VerdictNoImage Verdict = "NO IMAGE"
	VerdictError   Verdict = "ERROR"
)

// VerificationResult is produced fresh per verification call and never
// mutated after construction. Document is attached for integrity failures
// (TAMPERED, CONTENT MISMATCH, MODIFIED) so callers can show what the
// registry actually says.
type VerificationResult struct {
	Valid      bool            `json:"valid"`
	Verdict    Verdict         `json:"verdict"`
	Message    string          `json:"message"`
	Document   *DocumentRecord `json:"document"`
	Confidence float64         `json:"confidence"`
}
