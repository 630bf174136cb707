package http

// ETLResponse is the logged outcome of one trigger invocation, returned as
// the response body.
type ETLResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status,omitempty"`
	StartRow  int    `json:"start_row,omitempty"`
	EndRow    int    `json:"end_row,omitempty"`
	Source    string `json:"source,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AdhocExtractRequest carries inline rows for a one-off extraction without
// touching the database.
type AdhocExtractRequest struct {
	Rows          []map[string]string `json:"rows"`
	ColumnMapping map[string]string   `json:"columnMapping,omitempty"`
	AllowedTypes  []string            `json:"allowedTypes,omitempty"`
}

// AdhocExtractResponse returns validated records or a typed failure.
type AdhocExtractResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
