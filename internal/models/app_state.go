package models

// ToastState is the latest notification shown to the operator.
type ToastState struct {
	Message string   `json:"message"`
	Variant Severity `json:"variant"`
	Path    string   `json:"path,omitempty"`
}

// AppStateSnapshot is a consistent read of the shared console state.
type AppStateSnapshot struct {
	Search           string     `json:"search"`
	Toast            ToastState `json:"toast"`
	DeletingProgress int        `json:"deleting_progress"`
	IsDeleting       bool       `json:"is_deleting"`
}

// SearchRequest updates the list search text.
type SearchRequest struct {
	Search string `json:"search" validate:"max=255"`
}
