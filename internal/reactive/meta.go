package reactive

import "github.com/roach88/reactor/internal/value"

// Transport metadata written onto an instance by the fetch collaborator.
// These keys are bookkeeping, not user data: history tracking and durable
// persistence skip them.
const (
	MetaStatus     = "__status"
	MetaStatusText = "__statusText"
	MetaError      = "__error"
	MetaFinishedAt = "__finishedAt"
	MetaRequest    = "__request"
	MetaResponse   = "__response"
	MetaRefresh    = "__refresh"
	MetaPush       = "__push"
)

// MetaKeys returns every transport metadata key.
func MetaKeys() []string {
	return []string{
		MetaStatus,
		MetaStatusText,
		MetaError,
		MetaFinishedAt,
		MetaRequest,
		MetaResponse,
		MetaRefresh,
		MetaPush,
	}
}

// IsMeta reports whether a path is rooted at a metadata key.
func IsMeta(path string) bool {
	head := value.Head(path)
	for _, k := range MetaKeys() {
		if k == head {
			return true
		}
	}
	return false
}
